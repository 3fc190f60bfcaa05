package state

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

// Load rebuilds the ledger from the config, accounts, allowances, and
// exemption tables. The conservation invariant is re-verified by
// token.FromSnapshot, so a tampered database fails loudly here.
func (s *SQLiteStore) Load(ctx context.Context) (*token.Ledger, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		initialized int
		ownerStr    string
		supplyStr   string
		taxEnabled  int
		taxFraction int64
		receiverStr string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT initialized, owner, total_supply, tax_enabled, tax_fraction, tax_receive_address
		 FROM ledger_config WHERE id = 1`,
	).Scan(&initialized, &ownerStr, &supplyStr, &taxEnabled, &taxFraction, &receiverStr)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger config: %w", err)
	}

	if initialized == 0 {
		return token.NewLedger(), nil
	}

	snap := token.Snapshot{
		Initialized: true,
		TaxEnabled:  taxEnabled != 0,
		TaxFraction: uint16(taxFraction),
		Balances:    make(map[token.Address]*uint256.Int),
		Allowances:  make(map[token.Address]map[token.Address]*uint256.Int),
	}
	if snap.Owner, err = parseStoredAddress(ownerStr); err != nil {
		return nil, fmt.Errorf("failed to parse owner: %w", err)
	}
	if snap.TaxReceiveAddress, err = parseStoredAddress(receiverStr); err != nil {
		return nil, fmt.Errorf("failed to parse tax receive address: %w", err)
	}
	if snap.TotalSupply, err = uint256.FromDecimal(supplyStr); err != nil {
		return nil, fmt.Errorf("failed to parse total supply %q: %w", supplyStr, err)
	}

	if err := s.loadBalances(ctx, &snap); err != nil {
		return nil, err
	}
	if err := s.loadAllowances(ctx, &snap); err != nil {
		return nil, err
	}
	if err := s.loadExemptions(ctx, &snap); err != nil {
		return nil, err
	}

	ledger, err := token.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("persisted ledger state is corrupt: %w", err)
	}
	return ledger, nil
}

func (s *SQLiteStore) loadBalances(ctx context.Context, snap *token.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT address, balance FROM accounts`)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var addrStr, balStr string
		if err := rows.Scan(&addrStr, &balStr); err != nil {
			return fmt.Errorf("failed to scan account row: %w", err)
		}
		addr, err := token.ParseAddress(addrStr)
		if err != nil {
			return fmt.Errorf("failed to parse account address: %w", err)
		}
		bal, err := uint256.FromDecimal(balStr)
		if err != nil {
			return fmt.Errorf("failed to parse balance for %s: %w", addrStr, err)
		}
		snap.Balances[addr] = bal
	}
	return rows.Err()
}

func (s *SQLiteStore) loadAllowances(ctx context.Context, snap *token.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT owner, spender, amount FROM allowances`)
	if err != nil {
		return fmt.Errorf("failed to load allowances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ownerStr, spenderStr, amountStr string
		if err := rows.Scan(&ownerStr, &spenderStr, &amountStr); err != nil {
			return fmt.Errorf("failed to scan allowance row: %w", err)
		}
		owner, err := token.ParseAddress(ownerStr)
		if err != nil {
			return fmt.Errorf("failed to parse allowance owner: %w", err)
		}
		spender, err := token.ParseAddress(spenderStr)
		if err != nil {
			return fmt.Errorf("failed to parse allowance spender: %w", err)
		}
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse allowance amount: %w", err)
		}
		if snap.Allowances[owner] == nil {
			snap.Allowances[owner] = make(map[token.Address]*uint256.Int)
		}
		snap.Allowances[owner][spender] = amount
	}
	return rows.Err()
}

func (s *SQLiteStore) loadExemptions(ctx context.Context, snap *token.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM tax_exemptions`)
	if err != nil {
		return fmt.Errorf("failed to load tax exemptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var addrStr string
		if err := rows.Scan(&addrStr); err != nil {
			return fmt.Errorf("failed to scan exemption row: %w", err)
		}
		addr, err := token.ParseAddress(addrStr)
		if err != nil {
			return fmt.Errorf("failed to parse exemption address: %w", err)
		}
		snap.TaxExempt = append(snap.TaxExempt, addr)
	}
	return rows.Err()
}

// Commit persists one operation's receipt in a single transaction. Any
// failure rolls the whole write back, matching the all-or-nothing contract
// the core promises its callers.
func (s *SQLiteStore) Commit(ctx context.Context, ledger *token.Ledger, receipt *token.Receipt, opID string, at time.Time) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, account := range receipt.TouchedAccounts() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (address, balance) VALUES (?, ?)
			 ON CONFLICT(address) DO UPDATE SET balance = excluded.balance`,
			account.String(), ledger.BalanceOf(account).Dec(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert balance for %s: %w", account, err)
		}
	}

	for _, pair := range receipt.TouchedAllowances() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO allowances (owner, spender, amount) VALUES (?, ?, ?)
			 ON CONFLICT(owner, spender) DO UPDATE SET amount = excluded.amount`,
			pair.Owner.String(), pair.Spender.String(), ledger.Allowance(pair.Owner, pair.Spender).Dec(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert allowance %s->%s: %w", pair.Owner, pair.Spender, err)
		}
	}

	for _, account := range receipt.TouchedExemptions() {
		if ledger.IsTaxExempt(account) {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO tax_exemptions (address) VALUES (?)`, account.String())
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM tax_exemptions WHERE address = ?`, account.String())
		}
		if err != nil {
			return fmt.Errorf("failed to update exemption for %s: %w", account, err)
		}
	}

	if receipt.ConfigChanged() || receipt.SupplyChanged() {
		_, err := tx.ExecContext(ctx,
			`UPDATE ledger_config SET
			   initialized = ?, owner = ?, total_supply = ?,
			   tax_enabled = ?, tax_fraction = ?, tax_receive_address = ?
			 WHERE id = 1`,
			boolToInt(ledger.Initialized()),
			ledger.Owner().String(),
			ledger.TotalSupply().Dec(),
			boolToInt(ledger.TaxEnabled()),
			int64(ledger.TaxFraction()),
			ledger.TaxReceiveAddress().String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update ledger config: %w", err)
		}
	}

	for _, event := range receipt.Events() {
		amount := ""
		if event.Amount != nil {
			amount = event.Amount.Dec()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (op_id, created_at, kind, from_address, to_address, spender, amount, field, value)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			opID,
			at.UTC().Format(time.RFC3339Nano),
			string(event.Kind),
			event.From.String(),
			event.To.String(),
			event.Spender.String(),
			amount,
			event.Field,
			event.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// parseStoredAddress tolerates the empty string the config row holds
// before initialization.
func parseStoredAddress(s string) (token.Address, error) {
	if s == "" {
		return token.ZeroAddress, nil
	}
	return token.ParseAddress(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
