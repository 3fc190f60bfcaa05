package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewTaxCommand creates the tax command group. All subcommands are
// owner-only: --from must be the current ledger owner.
func NewTaxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Manage transfer taxation (owner only)",
		Long: `Manage the transfer tax: toggle it, set the fraction and receive
address, and grant or revoke per-account exemptions.

The tax fraction is a divisor: each taxed transfer pays amount/fraction
(integer division) to the tax receive address. Fraction 100 means 1%.`,
	}

	cmd.AddCommand(newTaxToggleCommand("enable", true))
	cmd.AddCommand(newTaxToggleCommand("disable", false))
	cmd.AddCommand(newTaxFractionCommand())
	cmd.AddCommand(newTaxReceiverCommand())
	cmd.AddCommand(newTaxExemptCommand())

	return cmd
}

func newTaxToggleCommand(verb string, enabled bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:     verb,
		Short:   fmt.Sprintf("%s transfer taxation", capitalize(verb)),
		Example: fmt.Sprintf("  leapledger tax %s --from <owner>", verb),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTaxMutation(cmd, "Tax "+verb+"d", func(ctx *CommandContext, caller token.Address) (*service.Result, error) {
				return ctx.Service.SetTaxEnabled(cmd.Context(), caller, enabled)
			})
		},
	}
	addFromFlag(cmd)
	return cmd
}

func newTaxFractionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fraction <divisor>",
		Short: "Set the tax fraction divisor",
		Long: `Set the tax fraction. A taxed transfer pays amount/divisor to the tax
receive address. Zero is accepted but blocks taxed transfers until a
non-zero fraction is set again.`,
		Example: `  # 1% tax
  leapledger tax fraction 100 --from <owner>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fraction, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid tax fraction %q: %w", args[0], err)
			}
			return runTaxMutation(cmd, "Tax fraction set", func(ctx *CommandContext, caller token.Address) (*service.Result, error) {
				return ctx.Service.SetTaxFraction(cmd.Context(), caller, uint16(fraction))
			})
		},
	}
	addFromFlag(cmd)
	return cmd
}

func newTaxReceiverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "receiver <address>",
		Short:   "Set the tax receive address",
		Example: "  leapledger tax receiver 0xa1... --from <owner>",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return runTaxMutation(cmd, "Tax receiver set", func(ctx *CommandContext, caller token.Address) (*service.Result, error) {
				return ctx.Service.SetTaxReceiveAddress(cmd.Context(), caller, account)
			})
		},
	}
	addFromFlag(cmd)
	return cmd
}

func newTaxExemptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exempt <address> <true|false>",
		Short: "Grant or revoke a tax exemption",
		Example: `  leapledger tax exempt 0xb1... true --from <owner>
  leapledger tax exempt 0xb1... false --from <owner>`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			exempt, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid exemption value %q: %w", args[1], err)
			}
			verb := "Exemption granted"
			if !exempt {
				verb = "Exemption revoked"
			}
			return runTaxMutation(cmd, verb, func(ctx *CommandContext, caller token.Address) (*service.Result, error) {
				return ctx.Service.SetAddressTaxExempt(cmd.Context(), caller, account, exempt)
			})
		},
	}
	addFromFlag(cmd)
	return cmd
}

// runTaxMutation shares the open/resolve/commit/render flow of the tax
// subcommands.
func runTaxMutation(cmd *cobra.Command, verb string, fn func(*CommandContext, token.Address) (*service.Result, error)) error {
	cfg := getConfig()
	caller, err := resolveCaller(cmd, cfg)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := fn(cmdCtx, caller)
	if err != nil {
		return err
	}
	return renderResult(cmdCtx.Renderer, verb, res)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
