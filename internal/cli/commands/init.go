package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapledger/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// starterConfig is the shape written to a fresh leapledger.yaml.
type starterConfig struct {
	StatePath string `yaml:"state_path"`
	Caller    string `yaml:"caller"`
	Output    string `yaml:"output"`
	Server    struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the token ledger",
		Long: `Initialize the token ledger with its fixed starting supply.

The caller becomes the owner, receives the entire initial supply, and is
marked tax-exempt. Initialization happens exactly once per ledger database.

When no leapledger.yaml exists in the current directory, a starter config
file is written with the caller recorded as the default caller.`,
		Example: `  # Initialize a new ledger
  leapledger init --from 0xd1a2...

  # Re-create the config file even if one exists
  leapledger init --from 0xd1a2... --force-config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			caller, err := resolveCaller(cmd, cfg)
			if err != nil {
				return err
			}

			if err := writeStarterConfig(cfg, caller.String(), force); err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cmdCtx.Service.Initialize(cmd.Context(), caller)
			if err != nil {
				return err
			}

			return renderResult(cmdCtx.Renderer, "Ledger initialized", res)
		},
	}

	addFromFlag(cmd)
	cmd.Flags().BoolVar(&force, "force-config", false, "Overwrite an existing leapledger.yaml")

	return cmd
}

// writeStarterConfig writes leapledger.yaml when absent (or force is set).
func writeStarterConfig(cfg *config.Config, caller string, force bool) error {
	if !force {
		for _, name := range []string{config.ConfigFileName, config.ConfigFileNameAlt} {
			if _, err := os.Stat(name); err == nil {
				return nil
			}
		}
	}

	var starter starterConfig
	starter.StatePath = cfg.StatePath
	if !filepath.IsAbs(starter.StatePath) {
		starter.StatePath = config.DefaultStateFile
	}
	starter.Caller = caller
	starter.Output = config.DefaultOutput
	starter.Server.Host = config.DefaultServerHost
	starter.Server.Port = config.DefaultServerPort

	data, err := yaml.Marshal(&starter)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(config.ConfigFileName, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
	}
	return nil
}
