package state

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

// Events reads the journal, newest first.
func (s *SQLiteStore) Events(ctx context.Context, q EventQuery) ([]JournalEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	query := `SELECT seq, op_id, created_at, kind, from_address, to_address, spender, amount, field, value
	          FROM events`
	args := []any{}
	if q.Account != nil {
		addr := q.Account.String()
		query += ` WHERE from_address = ? OR to_address = ? OR spender = ?`
		args = append(args, addr, addr, addr)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry      JournalEntry
			createdAt  string
			kind       string
			fromStr    string
			toStr      string
			spenderStr string
			amountStr  string
		)
		err := rows.Scan(&entry.Seq, &entry.OpID, &createdAt, &kind,
			&fromStr, &toStr, &spenderStr, &amountStr,
			&entry.Event.Field, &entry.Event.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp %q: %w", createdAt, err)
		}
		entry.Event.Kind = token.EventKind(kind)
		if entry.Event.From, err = parseStoredAddress(fromStr); err != nil {
			return nil, fmt.Errorf("failed to parse event sender: %w", err)
		}
		if entry.Event.To, err = parseStoredAddress(toStr); err != nil {
			return nil, fmt.Errorf("failed to parse event recipient: %w", err)
		}
		if entry.Event.Spender, err = parseStoredAddress(spenderStr); err != nil {
			return nil, fmt.Errorf("failed to parse event spender: %w", err)
		}
		if amountStr != "" {
			if entry.Event.Amount, err = uint256.FromDecimal(amountStr); err != nil {
				return nil, fmt.Errorf("failed to parse event amount %q: %w", amountStr, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
