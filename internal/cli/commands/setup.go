// Package commands implements the LeapLedger CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/internal/cli/output"
	"github.com/leapstack-labs/leapledger/internal/config"
	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Service  *service.Service
	Store    *state.SQLiteStore
	Renderer *output.Renderer
}

// NewCommandContext opens the ledger store and service for a command.
// Returns the context and a cleanup function that must be called (typically
// via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.Open(cmd.Context(), store, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Service:  svc,
		Store:    store,
		Renderer: r,
	}, cleanup, nil
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	statePath := getEnvOrDefault("LEAPLEDGER_STATE_PATH", config.DefaultStateFile)
	outputFormat := getEnvOrDefault("LEAPLEDGER_OUTPUT", config.DefaultOutput)
	return &config.Config{
		StatePath:    statePath,
		Caller:       os.Getenv("LEAPLEDGER_CALLER"),
		Verbose:      os.Getenv("LEAPLEDGER_VERBOSE") == "true",
		OutputFormat: outputFormat,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// openStore opens the ledger database and applies pending migrations.
func openStore(cfg *config.Config) (*state.SQLiteStore, error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// resolveCaller returns the caller address for a mutating command.
// Priority: --from flag > caller config key / LEAPLEDGER_CALLER.
func resolveCaller(cmd *cobra.Command, cfg *config.Config) (token.Address, error) {
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		return token.ParseAddress(from)
	}
	if cfg.Caller != "" {
		return token.ParseAddress(cfg.Caller)
	}
	return token.Address{}, fmt.Errorf("no caller address: pass --from or set caller in leapledger.yaml")
}

// parseAmount parses a decimal token amount.
func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// addFromFlag registers the shared --from flag on a mutating command.
func addFromFlag(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Caller address (overrides configured caller)")
}

// eventRows formats events for table rendering.
func eventRows(events []token.Event) [][]string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		var detail string
		switch e.Kind {
		case token.KindTransfer:
			detail = fmt.Sprintf("%s -> %s  %s", e.From, e.To, e.Amount.Dec())
		case token.KindApproval:
			detail = fmt.Sprintf("%s allows %s  %s", e.From, e.Spender, e.Amount.Dec())
		case token.KindConfigChanged:
			detail = fmt.Sprintf("%s = %s", e.Field, e.Value)
		}
		rows = append(rows, []string{string(e.Kind), detail})
	}
	return rows
}

// renderResult reports a committed operation in the renderer's mode.
func renderResult(r *output.Renderer, verb string, res *service.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"op_id":  res.OpID,
			"events": jsonEvents(res.Events),
		})
	}
	r.Success(verb)
	r.Table([]string{"event", "detail"}, eventRows(res.Events))
	return nil
}

// jsonEvent is the wire form of a ledger event for CLI and API output.
type jsonEvent struct {
	Kind    string `json:"kind"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

func jsonEvents(events []token.Event) []jsonEvent {
	out := make([]jsonEvent, 0, len(events))
	for _, e := range events {
		je := jsonEvent{Kind: string(e.Kind)}
		switch e.Kind {
		case token.KindTransfer:
			je.From = e.From.String()
			je.To = e.To.String()
			je.Amount = e.Amount.Dec()
		case token.KindApproval:
			je.From = e.From.String()
			je.Spender = e.Spender.String()
			je.Amount = e.Amount.Dec()
		case token.KindConfigChanged:
			je.Field = e.Field
			je.Value = e.Value
		}
		out = append(out, je)
	}
	return out
}
