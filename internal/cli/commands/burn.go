package commands

import (
	"github.com/spf13/cobra"
)

// NewBurnCommand creates the burn command.
func NewBurnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burn <amount>",
		Short: "Destroy tokens from the caller's balance",
		Long: `Burn tokens from the caller's own balance, reducing total supply.

Burning is never taxed and requires no authorization beyond holding the
tokens.`,
		Example: `  leapledger burn 1000 --from 0xd1...`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			from, err := resolveCaller(cmd, cfg)
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cmdCtx.Service.Burn(cmd.Context(), from, amount)
			if err != nil {
				return err
			}
			return renderResult(cmdCtx.Renderer, "Tokens burned", res)
		},
	}

	addFromFlag(cmd)
	return cmd
}
