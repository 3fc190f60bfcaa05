package commands

import (
	"github.com/leapstack-labs/leapledger/internal/cli/output"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewApproveCommand creates the approve command.
func NewApproveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Set a spender's allowance",
		Long: `Grant a spender the right to move tokens out of the caller's balance.

The amount replaces any previous allowance for that spender. Use
'allowance increase' or 'allowance decrease' for relative adjustments that
avoid read-modify-write races.`,
		Example: `  leapledger approve 0xb2... 5000 --from 0xd1...`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			from, err := resolveCaller(cmd, cfg)
			if err != nil {
				return err
			}
			spender, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := cmdCtx.Service.Approve(cmd.Context(), from, spender, amount)
			if err != nil {
				return err
			}
			return renderResult(cmdCtx.Renderer, "Allowance set", res)
		},
	}

	addFromFlag(cmd)
	return cmd
}

// NewAllowanceCommand creates the allowance command group.
func NewAllowanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Query or adjust allowances",
		Long: `Query the remaining allowance from owner to spender, or adjust the
caller's allowances with the increase and decrease subcommands.`,
		Example: `  # Query
  leapledger allowance 0xd1... 0xb2...

  # Adjust
  leapledger allowance increase 0xb2... 100 --from 0xd1...
  leapledger allowance decrease 0xb2... 100 --from 0xd1...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			spender, err := token.ParseAddress(args[1])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			remaining := cmdCtx.Service.Allowance(owner, spender)
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]string{
					"owner":     owner.String(),
					"spender":   spender.String(),
					"allowance": remaining.Dec(),
				})
			}
			r.KeyValues([][2]string{
				{"owner", owner.String()},
				{"spender", spender.String()},
				{"allowance", remaining.Dec()},
			})
			return nil
		},
	}

	cmd.AddCommand(newAllowanceAdjustCommand("increase", "Raise the caller's allowance for a spender"))
	cmd.AddCommand(newAllowanceAdjustCommand("decrease", "Lower the caller's allowance for a spender"))

	return cmd
}

func newAllowanceAdjustCommand(verb, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   verb + " <spender> <delta>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			from, err := resolveCaller(cmd, cfg)
			if err != nil {
				return err
			}
			spender, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			delta, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if verb == "increase" {
				r, err := cmdCtx.Service.IncreaseAllowance(cmd.Context(), from, spender, delta)
				if err != nil {
					return err
				}
				return renderResult(cmdCtx.Renderer, "Allowance increased", r)
			}
			r, err := cmdCtx.Service.DecreaseAllowance(cmd.Context(), from, spender, delta)
			if err != nil {
				return err
			}
			return renderResult(cmdCtx.Renderer, "Allowance decreased", r)
		},
	}

	addFromFlag(cmd)
	return cmd
}
