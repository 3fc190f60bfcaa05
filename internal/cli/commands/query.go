package commands

import (
	"strconv"

	"github.com/leapstack-labs/leapledger/internal/cli/output"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewBalanceCommand creates the balance query command.
func NewBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "balance <address>",
		Short:   "Show an account's balance",
		Example: "  leapledger balance 0xb1...",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := token.ParseAddress(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			balance := cmdCtx.Service.BalanceOf(account)
			exempt := cmdCtx.Service.IsTaxExempt(account)
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"address":    account.String(),
					"balance":    balance.Dec(),
					"tax_exempt": exempt,
				})
			}
			r.KeyValues([][2]string{
				{"address", account.String()},
				{"balance", balance.Dec()},
				{"tax_exempt", strconv.FormatBool(exempt)},
			})
			return nil
		},
	}
}

// NewSupplyCommand creates the supply query command.
func NewSupplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "supply",
		Short: "Show total token supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			supply := cmdCtx.Service.TotalSupply()
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]string{"total_supply": supply.Dec()})
			}
			r.Println(supply.Dec())
			return nil
		},
	}
}

// NewInfoCommand creates the info query command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show token metadata and tax configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			info := cmdCtx.Service.Info()
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.KeyValues([][2]string{
				{"name", info.Name},
				{"symbol", info.Symbol},
				{"decimals", strconv.Itoa(int(info.Decimals))},
				{"initialized", strconv.FormatBool(info.Initialized)},
				{"owner", info.Owner.String()},
				{"total_supply", info.TotalSupply},
				{"tax_enabled", strconv.FormatBool(info.TaxEnabled)},
				{"tax_fraction", strconv.Itoa(int(info.TaxFraction))},
				{"tax_receive_address", info.TaxReceiveAddress.String()},
			})
			return nil
		},
	}
}
