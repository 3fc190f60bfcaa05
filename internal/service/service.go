// Package service hosts the token ledger: it owns the loaded ledger and its
// store, serializes every mutating operation, and commits each operation's
// receipt atomically. This is the execution environment the ledger core
// assumes — the core performs no locking or persistence of its own.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

// Result is the outcome of one committed operation.
type Result struct {
	// OpID identifies the operation in the event journal.
	OpID string
	// Events are the ledger events the operation produced, in order.
	Events []token.Event
}

// Service wraps a ledger and its store behind a serialized operation API.
type Service struct {
	mu     sync.RWMutex
	store  state.Store
	ledger *token.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// Open loads the persisted ledger and returns a service around it.
func Open(ctx context.Context, store state.Store, logger *slog.Logger) (*Service, error) {
	ledger, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}, nil
}

// apply runs one mutating operation under the write lock and commits its
// receipt. If the commit fails the in-memory ledger is reloaded from the
// store so memory never drifts ahead of durable state.
func (s *Service) apply(ctx context.Context, op string, fn func(l *token.Ledger) (*token.Receipt, error)) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := fn(s.ledger)
	if err != nil {
		s.logger.Debug("ledger operation rejected", "op", op, "code", token.ErrorCode(err), "error", err)
		return nil, err
	}

	opID := uuid.NewString()
	if err := s.store.Commit(ctx, s.ledger, receipt, opID, s.now()); err != nil {
		if reloaded, loadErr := s.store.Load(ctx); loadErr == nil {
			s.ledger = reloaded
		} else {
			s.logger.Error("failed to reload ledger after commit failure", "error", loadErr)
		}
		return nil, fmt.Errorf("failed to commit %s: %w", op, err)
	}

	events := receipt.Events()
	s.logger.Info("ledger operation committed", "op", op, "op_id", opID, "events", len(events))
	s.warnZeroAddressFees(events)
	return &Result{OpID: opID, Events: events}, nil
}

// warnZeroAddressFees flags transfer fees paid to the unset (zero) tax
// receive address: the value stays in totalSupply but is effectively out
// of circulation until a receive address is configured.
func (s *Service) warnZeroAddressFees(events []token.Event) {
	for i, e := range events {
		if i == 0 || e.Kind != token.KindTransfer || !e.To.IsZero() {
			continue
		}
		s.logger.Warn("transfer fee accrued to the zero address; set a tax receive address",
			"from", e.From.String(), "amount", e.Amount.Dec())
	}
}

// Initialize sets up the ledger exactly once.
func (s *Service) Initialize(ctx context.Context, caller token.Address) (*Result, error) {
	return s.apply(ctx, "initialize", func(l *token.Ledger) (*token.Receipt, error) {
		return l.Initialize(caller)
	})
}

// Transfer moves amount from caller to recipient.
func (s *Service) Transfer(ctx context.Context, caller, recipient token.Address, amount *uint256.Int) (*Result, error) {
	return s.apply(ctx, "transfer", func(l *token.Ledger) (*token.Receipt, error) {
		return l.Transfer(caller, recipient, amount)
	})
}

// TransferFrom moves amount from sender to recipient using the caller's
// allowance.
func (s *Service) TransferFrom(ctx context.Context, caller, sender, recipient token.Address, amount *uint256.Int) (*Result, error) {
	return s.apply(ctx, "transfer_from", func(l *token.Ledger) (*token.Receipt, error) {
		return l.TransferFrom(caller, sender, recipient, amount)
	})
}

// Approve sets the caller's allowance for spender.
func (s *Service) Approve(ctx context.Context, caller, spender token.Address, amount *uint256.Int) (*Result, error) {
	return s.apply(ctx, "approve", func(l *token.Ledger) (*token.Receipt, error) {
		return l.Approve(caller, spender, amount)
	})
}

// IncreaseAllowance raises the caller's allowance for spender by delta.
func (s *Service) IncreaseAllowance(ctx context.Context, caller, spender token.Address, delta *uint256.Int) (*Result, error) {
	return s.apply(ctx, "increase_allowance", func(l *token.Ledger) (*token.Receipt, error) {
		return l.IncreaseAllowance(caller, spender, delta)
	})
}

// DecreaseAllowance lowers the caller's allowance for spender by delta.
func (s *Service) DecreaseAllowance(ctx context.Context, caller, spender token.Address, delta *uint256.Int) (*Result, error) {
	return s.apply(ctx, "decrease_allowance", func(l *token.Ledger) (*token.Receipt, error) {
		return l.DecreaseAllowance(caller, spender, delta)
	})
}

// Burn destroys amount from the caller's balance.
func (s *Service) Burn(ctx context.Context, caller token.Address, amount *uint256.Int) (*Result, error) {
	return s.apply(ctx, "burn", func(l *token.Ledger) (*token.Receipt, error) {
		return l.Burn(caller, amount)
	})
}

// SetTaxEnabled toggles taxation. Owner only.
func (s *Service) SetTaxEnabled(ctx context.Context, caller token.Address, enabled bool) (*Result, error) {
	return s.apply(ctx, "set_tax_enabled", func(l *token.Ledger) (*token.Receipt, error) {
		return l.SetTaxEnabled(caller, enabled)
	})
}

// SetTaxReceiveAddress sets the fee collection account. Owner only.
func (s *Service) SetTaxReceiveAddress(ctx context.Context, caller, account token.Address) (*Result, error) {
	return s.apply(ctx, "set_tax_receive_address", func(l *token.Ledger) (*token.Receipt, error) {
		return l.SetTaxReceiveAddress(caller, account)
	})
}

// SetAddressTaxExempt adds or removes a tax exemption. Owner only.
func (s *Service) SetAddressTaxExempt(ctx context.Context, caller, account token.Address, exempt bool) (*Result, error) {
	return s.apply(ctx, "set_address_tax_exempt", func(l *token.Ledger) (*token.Receipt, error) {
		return l.SetAddressTaxExempt(caller, account, exempt)
	})
}

// SetTaxFraction sets the tax denominator. Owner only.
func (s *Service) SetTaxFraction(ctx context.Context, caller token.Address, fraction uint16) (*Result, error) {
	return s.apply(ctx, "set_tax_fraction", func(l *token.Ledger) (*token.Receipt, error) {
		return l.SetTaxFraction(caller, fraction)
	})
}

// TransferOwnership hands administrative control to newOwner. Owner only.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner token.Address) (*Result, error) {
	return s.apply(ctx, "transfer_ownership", func(l *token.Ledger) (*token.Receipt, error) {
		return l.TransferOwnership(caller, newOwner)
	})
}

// Info is a read-only view of ledger metadata and configuration.
type Info struct {
	Name              string        `json:"name"`
	Symbol            string        `json:"symbol"`
	Decimals          uint8         `json:"decimals"`
	Initialized       bool          `json:"initialized"`
	Owner             token.Address `json:"owner"`
	TotalSupply       string        `json:"total_supply"`
	TaxEnabled        bool          `json:"tax_enabled"`
	TaxFraction       uint16        `json:"tax_fraction"`
	TaxReceiveAddress token.Address `json:"tax_receive_address"`
}

// Info returns token metadata plus the current configuration.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Name:              s.ledger.Name(),
		Symbol:            s.ledger.Symbol(),
		Decimals:          s.ledger.Decimals(),
		Initialized:       s.ledger.Initialized(),
		Owner:             s.ledger.Owner(),
		TotalSupply:       s.ledger.TotalSupply().Dec(),
		TaxEnabled:        s.ledger.TaxEnabled(),
		TaxFraction:       s.ledger.TaxFraction(),
		TaxReceiveAddress: s.ledger.TaxReceiveAddress(),
	}
}

// TotalSupply returns the current total supply.
func (s *Service) TotalSupply() *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.TotalSupply()
}

// BalanceOf returns the balance of account.
func (s *Service) BalanceOf(account token.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.BalanceOf(account)
}

// Allowance returns the remaining allowance from owner to spender.
func (s *Service) Allowance(owner, spender token.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Allowance(owner, spender)
}

// IsTaxExempt reports whether account is tax-exempt.
func (s *Service) IsTaxExempt(account token.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.IsTaxExempt(account)
}

// Events reads the event journal, newest first.
func (s *Service) Events(ctx context.Context, q state.EventQuery) ([]state.JournalEntry, error) {
	return s.store.Events(ctx, q)
}
