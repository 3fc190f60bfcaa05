package state

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

var (
	deployer = token.MustParseAddress("0x00000000000000000000000000000000000000d1")
	treasury = token.MustParseAddress("0x00000000000000000000000000000000000000a1")
	user1    = token.MustParseAddress("0x00000000000000000000000000000000000000b1")
	user2    = token.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

// commit runs a ledger operation helper and persists its receipt.
func commit(t *testing.T, store *SQLiteStore, ledger *token.Ledger, receipt *token.Receipt) {
	t.Helper()
	if err := store.Commit(context.Background(), ledger, receipt, uuid.NewString(), time.Now()); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	tables := []string{"ledger_config", "accounts", "allowances", "tax_exemptions", "events"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			_ = rows.Close()
		}
	}

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version < 1 {
		t.Errorf("migration version = %d, want >= 1", version)
	}
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store := setupTestStore(t)

	ledger, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load empty store: %v", err)
	}
	if ledger.Initialized() {
		t.Error("empty store should yield an uninitialized ledger")
	}
	if !ledger.TotalSupply().IsZero() {
		t.Errorf("empty ledger supply = %s", ledger.TotalSupply().Dec())
	}
}

func TestSQLiteStore_CommitLoadRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ledger := token.NewLedger()

	receipt, err := ledger.Initialize(deployer)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetTaxReceiveAddress(deployer, treasury); err != nil {
		t.Fatalf("set tax receiver: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetTaxEnabled(deployer, true); err != nil {
		t.Fatalf("enable tax: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.Transfer(deployer, user1, uint256.NewInt(1000)); err != nil {
		t.Fatalf("fund user1: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.Transfer(user1, user2, uint256.NewInt(100)); err != nil {
		t.Fatalf("taxed transfer: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.Approve(user1, user2, uint256.NewInt(42)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	commit(t, store, ledger, receipt)

	restored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if !restored.Initialized() {
		t.Fatal("restored ledger not initialized")
	}
	if restored.Owner() != deployer {
		t.Errorf("owner = %s, want %s", restored.Owner(), deployer)
	}
	if !restored.TaxEnabled() || restored.TaxReceiveAddress() != treasury {
		t.Error("tax configuration not restored")
	}
	if !restored.IsTaxExempt(deployer) {
		t.Error("exemption set not restored")
	}
	if got := restored.BalanceOf(user1); !got.Eq(uint256.NewInt(900)) {
		t.Errorf("user1 balance = %s, want 900", got.Dec())
	}
	if got := restored.BalanceOf(user2); !got.Eq(uint256.NewInt(99)) {
		t.Errorf("user2 balance = %s, want 99", got.Dec())
	}
	if got := restored.BalanceOf(treasury); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("treasury balance = %s, want 1", got.Dec())
	}
	if got := restored.Allowance(user1, user2); !got.Eq(uint256.NewInt(42)) {
		t.Errorf("allowance = %s, want 42", got.Dec())
	}
	if got, want := restored.TotalSupply(), ledger.TotalSupply(); !got.Eq(want) {
		t.Errorf("supply = %s, want %s", got.Dec(), want.Dec())
	}
	if err := restored.CheckConservation(); err != nil {
		t.Errorf("restored ledger violates conservation: %v", err)
	}
}

func TestSQLiteStore_ExemptionRevocationPersists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ledger := token.NewLedger()

	receipt, err := ledger.Initialize(deployer)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetAddressTaxExempt(deployer, user1, true); err != nil {
		t.Fatalf("exempt user1: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetAddressTaxExempt(deployer, user1, false); err != nil {
		t.Fatalf("revoke exemption: %v", err)
	}
	commit(t, store, ledger, receipt)

	restored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if restored.IsTaxExempt(user1) {
		t.Error("revoked exemption still persisted")
	}
	if !restored.IsTaxExempt(deployer) {
		t.Error("deployer exemption lost")
	}
}

func TestSQLiteStore_Events(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ledger := token.NewLedger()

	receipt, err := ledger.Initialize(deployer)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetTaxReceiveAddress(deployer, treasury); err != nil {
		t.Fatalf("set tax receiver: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.SetTaxEnabled(deployer, true); err != nil {
		t.Fatalf("enable tax: %v", err)
	}
	commit(t, store, ledger, receipt)

	if receipt, err = ledger.Transfer(deployer, user1, uint256.NewInt(1000)); err != nil {
		t.Fatalf("fund user1: %v", err)
	}
	commit(t, store, ledger, receipt)

	opID := uuid.NewString()
	if receipt, err = ledger.Transfer(user1, user2, uint256.NewInt(100)); err != nil {
		t.Fatalf("taxed transfer: %v", err)
	}
	if err := store.Commit(ctx, ledger, receipt, opID, time.Now()); err != nil {
		t.Fatalf("commit taxed transfer: %v", err)
	}

	t.Run("newest first with default limit", func(t *testing.T) {
		entries, err := store.Events(ctx, EventQuery{})
		if err != nil {
			t.Fatalf("failed to query events: %v", err)
		}
		// init mint + 2 config changes + direct transfer + net/fee pair
		if len(entries) != 6 {
			t.Fatalf("expected 6 events, got %d", len(entries))
		}
		for i := 1; i < len(entries); i++ {
			if entries[i-1].Seq <= entries[i].Seq {
				t.Errorf("entries not ordered newest first: %d then %d", entries[i-1].Seq, entries[i].Seq)
			}
		}
		// The taxed transfer appended net before fee, so newest-first
		// returns the fee event first and both share the operation ID.
		if entries[0].Event.To != treasury || !entries[0].Event.Amount.Eq(uint256.NewInt(1)) {
			t.Errorf("fee event = %+v", entries[0].Event)
		}
		if entries[1].Event.To != user2 || !entries[1].Event.Amount.Eq(uint256.NewInt(99)) {
			t.Errorf("net event = %+v", entries[1].Event)
		}
		if entries[0].OpID != opID || entries[1].OpID != opID {
			t.Error("taxed transfer events do not share an operation ID")
		}
	})

	t.Run("account filter", func(t *testing.T) {
		entries, err := store.Events(ctx, EventQuery{Account: &user2})
		if err != nil {
			t.Fatalf("failed to query events: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 event for user2, got %d", len(entries))
		}
		if entries[0].Event.To != user2 {
			t.Errorf("unexpected event: %+v", entries[0].Event)
		}
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := store.Events(ctx, EventQuery{Limit: 2})
		if err != nil {
			t.Fatalf("failed to query events: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 events, got %d", len(entries))
		}
	})
}
