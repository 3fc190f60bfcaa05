package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapledger/internal/cli/output"
	"github.com/leapstack-labs/leapledger/internal/config"
	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/internal/testutil"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeployer = "0x00000000000000000000000000000000000000d1"
	testUser     = "0x00000000000000000000000000000000000000b1"
)

func TestNewTransferCommand(t *testing.T) {
	cmd := NewTransferCommand()

	assert.Equal(t, "transfer <to> <amount>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"from", "spender"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewTaxCommand(t *testing.T) {
	cmd := NewTaxCommand()

	assert.Equal(t, "tax", cmd.Use)
	subs := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subs[sub.Name()] = true
	}
	for _, name := range []string{"enable", "disable", "fraction", "receiver", "exempt"} {
		assert.True(t, subs[name], "subcommand %q should exist", name)
	}
}

func TestNewAllowanceCommand(t *testing.T) {
	cmd := NewAllowanceCommand()

	assert.Equal(t, "allowance <owner> <spender>", cmd.Use)
	subs := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subs[sub.Name()] = true
	}
	assert.True(t, subs["increase"])
	assert.True(t, subs["decrease"])
}

// runInTempLedger executes a command tree rooted at a fresh temp ledger and
// returns stdout.
func runInTempLedger(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// newTestRoot builds a minimal root wired like the production root command:
// config load in PersistentPreRunE, JSON output, isolated state path.
func newTestRoot(t *testing.T, cmds ...*cobra.Command) *cobra.Command {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	statePath := filepath.Join(dir, "ledger.db")
	root := &cobra.Command{
		Use:           "leapledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := config.LoadConfig("", cmd.Root().PersistentFlags())
			return err
		},
	}
	root.PersistentFlags().String("state", "", "")
	root.PersistentFlags().String("caller", "", "")
	root.PersistentFlags().BoolP("verbose", "v", false, "")
	root.PersistentFlags().StringP("output", "o", "", "")
	for _, c := range cmds {
		root.AddCommand(c)
	}
	t.Setenv("LEAPLEDGER_STATE_PATH", statePath)
	t.Setenv("LEAPLEDGER_OUTPUT", "json")
	return root
}

func TestInitCommand_EndToEnd(t *testing.T) {
	root := newTestRoot(t, NewInitCommand(), NewSupplyCommand())

	out, err := runInTempLedger(t, root, "init", "--from", testDeployer, "--output", "json", "--state", os.Getenv("LEAPLEDGER_STATE_PATH"))
	require.NoError(t, err, out)

	var res struct {
		OpID   string `json:"op_id"`
		Events []struct {
			Kind   string `json:"kind"`
			To     string `json:"to"`
			Amount string `json:"amount"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.OpID)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "transfer", res.Events[0].Kind)
	assert.Equal(t, testDeployer, res.Events[0].To)

	// A starter config file was written
	_, statErr := os.Stat(config.ConfigFileName)
	assert.NoError(t, statErr)

	// Double-init is rejected
	_, err = runInTempLedger(t, root, "init", "--from", testDeployer)
	assert.Error(t, err)
}

func TestTransferAndBalance_EndToEnd(t *testing.T) {
	root := newTestRoot(t, NewInitCommand(), NewTransferCommand(), NewBalanceCommand())

	out, err := runInTempLedger(t, root, "init", "--from", testDeployer)
	require.NoError(t, err, out)

	out, err = runInTempLedger(t, root, "transfer", testUser, "1234", "--from", testDeployer)
	require.NoError(t, err, out)

	out, err = runInTempLedger(t, root, "balance", testUser)
	require.NoError(t, err, out)

	var bal struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, "1234", bal.Balance)
}

func TestTransferCommand_NoCaller(t *testing.T) {
	root := newTestRoot(t, NewInitCommand(), NewTransferCommand())

	_, err := runInTempLedger(t, root, "init", "--from", testDeployer)
	require.NoError(t, err)

	// The starter config records the deployer as default caller, so clear it
	require.NoError(t, os.Remove(config.ConfigFileName))
	config.ResetConfig()

	_, err = runInTempLedger(t, root, "transfer", testUser, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no caller address")
}

func TestREPLVerbs_AllowanceAndEvents(t *testing.T) {
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	svc, err := service.Open(context.Background(), store, testutil.NewTestLogger(t))
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())

	deployer := token.MustParseAddress(testDeployer)
	cmdCtx := &CommandContext{
		Service:  svc,
		Renderer: output.NewRenderer(&out, &out, output.ModeJSON),
	}

	require.NoError(t, runREPLVerb(cmd, cmdCtx, "init", nil, deployer, true))
	require.NoError(t, runREPLVerb(cmd, cmdCtx, "increase", []string{testUser, "40"}, deployer, true))
	require.NoError(t, runREPLVerb(cmd, cmdCtx, "decrease", []string{testUser, "15"}, deployer, true))

	out.Reset()
	require.NoError(t, runREPLVerb(cmd, cmdCtx, "allowance", []string{testDeployer, testUser}, deployer, true))
	assert.Equal(t, "25", strings.TrimSpace(out.String()))

	// The two newest journal entries are the approval pair just recorded.
	out.Reset()
	require.NoError(t, runREPLVerb(cmd, cmdCtx, "events", []string{"2"}, deployer, true))
	assert.Contains(t, out.String(), "approval")

	require.Error(t, runREPLVerb(cmd, cmdCtx, "events", []string{"0"}, deployer, true))
	require.Error(t, runREPLVerb(cmd, cmdCtx, "increase", []string{testUser}, deployer, true))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"0", false},
		{"1000", false},
		{"60000000000000000000000", false},
		{"", true},
		{"-5", true},
		{"1.5", true},
		{"abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
