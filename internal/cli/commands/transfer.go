package commands

import (
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewTransferCommand creates the transfer command.
func NewTransferCommand() *cobra.Command {
	var spender string

	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer tokens to another account",
		Long: `Transfer tokens from the caller to another account.

When taxation is enabled and the sender is not exempt, the amount is split:
amount/tax_fraction (integer division) goes to the tax receive address and
the remainder goes to the recipient.

With --spender, the transfer is delegated: the spender moves tokens out of
the --from account against its allowance.`,
		Example: `  # Plain transfer
  leapledger transfer 0xb1... 1000 --from 0xd1...

  # Delegated transfer spending 0xd1's allowance granted to 0xb2
  leapledger transfer 0xb1... 1000 --from 0xd1... --spender 0xb2...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			from, err := resolveCaller(cmd, cfg)
			if err != nil {
				return err
			}
			to, err := token.ParseAddress(args[0])
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

			if spender != "" {
				spenderAddr, err := token.ParseAddress(spender)
				if err != nil {
					return err
				}
				res, err := cmdCtx.Service.TransferFrom(cmd.Context(), spenderAddr, from, to, amount)
				if err != nil {
					return err
				}
				return renderResult(cmdCtx.Renderer, "Delegated transfer committed", res)
			}

			res, err := cmdCtx.Service.Transfer(cmd.Context(), from, to, amount)
			if err != nil {
				return err
			}
			return renderResult(cmdCtx.Renderer, "Transfer committed", res)
		},
	}

	addFromFlag(cmd)
	cmd.Flags().StringVar(&spender, "spender", "", "Spender address for a delegated transfer")

	return cmd
}
