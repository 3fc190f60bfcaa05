package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"time"

	"github.com/chzyer/readline"
	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive ledger shell",
		Long: `Start an interactive shell over the ledger. The shell offers the same
verbs as the CLI with a persistent caller set via 'as <address>'.`,
		Example: `  leapledger repl
  ledger> as 0xd1...
  ledger> transfer 0xb1... 1000
  ledger> balance 0xb1...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
	addFromFlag(cmd)
	return cmd
}

func runREPL(cmd *cobra.Command) error {
	cfg := getConfig()

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Persistent caller: --from flag or configured caller, changeable with
	// the 'as' verb.
	var caller token.Address
	var haveCaller bool
	if addr, err := resolveCaller(cmd, cfg); err == nil {
		caller = addr
		haveCaller = true
	}

	// History file next to the ledger database
	historyFile := filepath.Join(filepath.Dir(cfg.StatePath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ledger> ",
		HistoryFile:     historyFile,
		AutoComplete:    newVerbCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "LeapLedger REPL (state: %s)\n", cfg.StatePath)
	_, _ = fmt.Fprintln(out, "Type help for commands, quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb := strings.ToLower(fields[0])
		args := fields[1:]

		if verb == "quit" || verb == "exit" {
			break
		}

		if verb == "as" {
			if len(args) != 1 {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: as <address>")
				continue
			}
			addr, err := token.ParseAddress(args[0])
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				continue
			}
			caller = addr
			haveCaller = true
			_, _ = fmt.Fprintf(out, "Acting as %s\n", caller)
			continue
		}

		if err := runREPLVerb(cmd, cmdCtx, verb, args, caller, haveCaller); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	return nil
}

var errNoREPLCaller = errors.New("no caller set: use 'as <address>' first")

func runREPLVerb(cmd *cobra.Command, cmdCtx *CommandContext, verb string, args []string, caller token.Address, haveCaller bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	svc := cmdCtx.Service
	r := cmdCtx.Renderer

	requireCaller := func() error {
		if !haveCaller {
			return errNoREPLCaller
		}
		return nil
	}

	parseAddr := func(s string) (token.Address, error) { return token.ParseAddress(s) }
	parseAmt := func(s string) (*uint256.Int, error) { return parseAmount(s) }

	switch verb {
	case "help":
		printREPLHelp(out)
		return nil

	case "init":
		if err := requireCaller(); err != nil {
			return err
		}
		res, err := svc.Initialize(ctx, caller)
		if err != nil {
			return err
		}
		return renderResult(r, "Ledger initialized", res)

	case "transfer":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 2 {
			return errors.New("usage: transfer <to> <amount>")
		}
		to, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmt(args[1])
		if err != nil {
			return err
		}
		res, err := svc.Transfer(ctx, caller, to, amount)
		if err != nil {
			return err
		}
		return renderResult(r, "Transfer committed", res)

	case "transferfrom":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 3 {
			return errors.New("usage: transferfrom <sender> <to> <amount>")
		}
		sender, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		to, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		amount, err := parseAmt(args[2])
		if err != nil {
			return err
		}
		res, err := svc.TransferFrom(ctx, caller, sender, to, amount)
		if err != nil {
			return err
		}
		return renderResult(r, "Delegated transfer committed", res)

	case "approve":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 2 {
			return errors.New("usage: approve <spender> <amount>")
		}
		spender, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmt(args[1])
		if err != nil {
			return err
		}
		res, err := svc.Approve(ctx, caller, spender, amount)
		if err != nil {
			return err
		}
		return renderResult(r, "Allowance set", res)

	case "increase", "decrease":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <spender> <delta>", verb)
		}
		spender, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		delta, err := parseAmt(args[1])
		if err != nil {
			return err
		}
		if verb == "increase" {
			res, err := svc.IncreaseAllowance(ctx, caller, spender, delta)
			if err != nil {
				return err
			}
			return renderResult(r, "Allowance increased", res)
		}
		res, err := svc.DecreaseAllowance(ctx, caller, spender, delta)
		if err != nil {
			return err
		}
		return renderResult(r, "Allowance decreased", res)

	case "burn":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 1 {
			return errors.New("usage: burn <amount>")
		}
		amount, err := parseAmt(args[0])
		if err != nil {
			return err
		}
		res, err := svc.Burn(ctx, caller, amount)
		if err != nil {
			return err
		}
		return renderResult(r, "Tokens burned", res)

	case "balance":
		if len(args) != 1 {
			return errors.New("usage: balance <address>")
		}
		account, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, svc.BalanceOf(account).Dec())
		return nil

	case "allowance":
		if len(args) != 2 {
			return errors.New("usage: allowance <owner> <spender>")
		}
		owner, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		spender, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, svc.Allowance(owner, spender).Dec())
		return nil

	case "supply":
		_, _ = fmt.Fprintln(out, svc.TotalSupply().Dec())
		return nil

	case "info":
		info := svc.Info()
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

	case "events":
		q := state.EventQuery{}
		if len(args) > 1 {
			return errors.New("usage: events [limit]")
		}
		if len(args) == 1 {
			limit, err := strconv.Atoi(args[0])
			if err != nil || limit <= 0 {
				return fmt.Errorf("invalid limit %q", args[0])
			}
			q.Limit = limit
		}
		entries, err := svc.Events(ctx, q)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			detail := eventRows([]token.Event{e.Event})[0]
			rows = append(rows, []string{
				e.CreatedAt.Local().Format(time.RFC3339),
				shortOpID(e.OpID),
				detail[0],
				detail[1],
			})
		}
		r.Table([]string{"time", "op", "event", "detail"}, rows)
		return nil

	case "tax":
		if err := requireCaller(); err != nil {
			return err
		}
		return runREPLTax(cmd, cmdCtx, args, caller)

	case "owner":
		if err := requireCaller(); err != nil {
			return err
		}
		if len(args) != 2 || args[0] != "transfer" {
			return errors.New("usage: owner transfer <new-owner>")
		}
		newOwner, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		res, err := svc.TransferOwnership(ctx, caller, newOwner)
		if err != nil {
			return err
		}
		return renderResult(r, "Ownership transferred", res)

	default:
		return fmt.Errorf("unknown command: %s (type help for commands)", verb)
	}
}

func runREPLTax(cmd *cobra.Command, cmdCtx *CommandContext, args []string, caller token.Address) error {
	ctx := cmd.Context()
	svc := cmdCtx.Service
	r := cmdCtx.Renderer

	if len(args) == 0 {
		return errors.New("usage: tax enable|disable|fraction|receiver|exempt ...")
	}

	switch args[0] {
	case "enable", "disable":
		res, err := svc.SetTaxEnabled(ctx, caller, args[0] == "enable")
		if err != nil {
			return err
		}
		return renderResult(r, "Tax "+args[0]+"d", res)

	case "fraction":
		if len(args) != 2 {
			return errors.New("usage: tax fraction <divisor>")
		}
		fraction, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid tax fraction %q: %w", args[1], err)
		}
		res, err := svc.SetTaxFraction(ctx, caller, uint16(fraction))
		if err != nil {
			return err
		}
		return renderResult(r, "Tax fraction set", res)

	case "receiver":
		if len(args) != 2 {
			return errors.New("usage: tax receiver <address>")
		}
		account, err := token.ParseAddress(args[1])
		if err != nil {
			return err
		}
		res, err := svc.SetTaxReceiveAddress(ctx, caller, account)
		if err != nil {
			return err
		}
		return renderResult(r, "Tax receiver set", res)

	case "exempt":
		if len(args) != 3 {
			return errors.New("usage: tax exempt <address> <true|false>")
		}
		account, err := token.ParseAddress(args[1])
		if err != nil {
			return err
		}
		exempt, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("invalid exemption value %q: %w", args[2], err)
		}
		verb := "Exemption granted"
		if !exempt {
			verb = "Exemption revoked"
		}
		res, err := svc.SetAddressTaxExempt(ctx, caller, account, exempt)
		if err != nil {
			return err
		}
		return renderResult(r, verb, res)

	default:
		return fmt.Errorf("unknown tax command: %s", args[0])
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  as <address>                       Set the acting caller
  init                               Initialize the ledger
  transfer <to> <amount>             Transfer tokens
  transferfrom <sender> <to> <amt>   Spend an allowance
  approve <spender> <amount>         Set an allowance
  increase <spender> <delta>         Raise an allowance
  decrease <spender> <delta>         Lower an allowance
  burn <amount>                      Burn tokens
  balance <address>                  Show a balance
  allowance <owner> <spender>        Show an allowance
  supply                             Show total supply
  info                               Show token metadata and tax config
  events [limit]                     List journal events, newest first
  tax enable|disable                 Toggle taxation (owner)
  tax fraction <divisor>             Set the tax fraction (owner)
  tax receiver <address>             Set the tax receive address (owner)
  tax exempt <address> <bool>        Grant/revoke an exemption (owner)
  owner transfer <new-owner>         Transfer ownership (owner)
  help                               Show this help message
  quit / exit                        Exit the REPL
`
	_, _ = fmt.Fprintln(w, help)
}

// newVerbCompleter creates a readline completer for REPL verbs.
func newVerbCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("as"),
		readline.PcItem("init"),
		readline.PcItem("transfer"),
		readline.PcItem("transferfrom"),
		readline.PcItem("approve"),
		readline.PcItem("increase"),
		readline.PcItem("decrease"),
		readline.PcItem("burn"),
		readline.PcItem("balance"),
		readline.PcItem("allowance"),
		readline.PcItem("supply"),
		readline.PcItem("info"),
		readline.PcItem("events"),
		readline.PcItem("tax",
			readline.PcItem("enable"),
			readline.PcItem("disable"),
			readline.PcItem("fraction"),
			readline.PcItem("receiver"),
			readline.PcItem("exempt"),
		),
		readline.PcItem("owner",
			readline.PcItem("transfer"),
		),
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}
