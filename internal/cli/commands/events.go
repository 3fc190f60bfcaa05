package commands

import (
	"time"

	"github.com/leapstack-labs/leapledger/internal/cli/output"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/spf13/cobra"
)

// NewEventsCommand creates the events command.
func NewEventsCommand() *cobra.Command {
	var limit int
	var account string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded ledger events",
		Long: `List events from the journal, newest first.

Every committed operation appends its events with a shared operation ID,
so a taxed transfer shows as two transfer events under one ID.`,
		Example: `  # Most recent events
  leapledger events

  # Events touching one account
  leapledger events --account 0xb1... --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := state.EventQuery{Limit: limit}
			if account != "" {
				addr, err := token.ParseAddress(account)
				if err != nil {
					return err
				}
				q.Account = &addr
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := cmdCtx.Service.Events(cmd.Context(), q)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				type jsonEntry struct {
					Seq       int64     `json:"seq"`
					OpID      string    `json:"op_id"`
					CreatedAt time.Time `json:"created_at"`
					Event     jsonEvent `json:"event"`
				}
				out := make([]jsonEntry, 0, len(entries))
				for _, e := range entries {
					out = append(out, jsonEntry{
						Seq:       e.Seq,
						OpID:      e.OpID,
						CreatedAt: e.CreatedAt,
						Event:     jsonEvents([]token.Event{e.Event})[0],
					})
				}
				return r.JSON(out)
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
		},
	}

	cmd.Flags().IntVar(&limit, "limit", state.DefaultEventLimit, "Maximum number of events to list")
	cmd.Flags().StringVar(&account, "account", "", "Only events involving this address")

	return cmd
}

func shortOpID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
