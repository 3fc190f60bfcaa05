package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

// burnReceipt builds a ledger with one committed burn receipt. Burn touches
// exactly one account, so the commit statement order is deterministic.
func burnReceipt(t *testing.T) (*token.Ledger, *token.Receipt) {
	t.Helper()
	ledger := token.NewLedger()
	if _, err := ledger.Initialize(deployer); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	receipt, err := ledger.Burn(deployer, uint256.NewInt(5))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	return ledger, receipt
}

func TestCommit_RollsBackOnWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := &SQLiteStore{db: db}
	ledger, receipt := burnReceipt(t)

	writeErr := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnError(writeErr)
	mock.ExpectRollback()

	err = store.Commit(context.Background(), ledger, receipt, "op-1", time.Now())
	if !errors.Is(err, writeErr) {
		t.Fatalf("commit error = %v, want wrapped %v", err, writeErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCommit_RollsBackOnCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := &SQLiteStore{db: db}
	ledger, receipt := burnReceipt(t)

	commitErr := errors.New("io error during commit")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ledger_config").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(commitErr)

	err = store.Commit(context.Background(), ledger, receipt, "op-1", time.Now())
	if !errors.Is(err, commitErr) {
		t.Fatalf("commit error = %v, want wrapped %v", err, commitErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
