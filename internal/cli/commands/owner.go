package commands

import (
	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewOwnerCommand creates the owner command group.
func NewOwnerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage ledger ownership",
	}

	transfer := &cobra.Command{
		Use:   "transfer <new-owner>",
		Short: "Transfer ledger ownership (owner only)",
		Long: `Hand administrative control to a new owner. The previous owner keeps
its balance and any tax exemption but loses access to the admin setters.`,
		Example: "  leapledger owner transfer 0xb1... --from <owner>",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newOwner, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return runTaxMutation(cmd, "Ownership transferred", func(ctx *CommandContext, caller token.Address) (*service.Result, error) {
				return ctx.Service.TransferOwnership(cmd.Context(), caller, newOwner)
			})
		},
	}
	addFromFlag(transfer)

	cmd.AddCommand(transfer)
	return cmd
}
