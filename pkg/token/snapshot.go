package token

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Snapshot is a full copy of ledger state, used to persist and rebuild the
// singleton between process runs. Maps are deep-copied in both directions
// so a snapshot never aliases live ledger state.
type Snapshot struct {
	Initialized       bool
	Owner             Address
	TotalSupply       *uint256.Int
	TaxEnabled        bool
	TaxFraction       uint16
	TaxReceiveAddress Address
	Balances          map[Address]*uint256.Int
	Allowances        map[Address]map[Address]*uint256.Int
	TaxExempt         []Address
}

// Snapshot returns a deep copy of the current ledger state.
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		Initialized:       l.initialized,
		Owner:             l.owner,
		TotalSupply:       l.totalSupply.Clone(),
		TaxEnabled:        l.taxEnabled,
		TaxFraction:       l.taxFraction,
		TaxReceiveAddress: l.taxReceiveAddress,
		Balances:          make(map[Address]*uint256.Int, len(l.balances)),
		Allowances:        make(map[Address]map[Address]*uint256.Int, len(l.allowances)),
	}
	for a, b := range l.balances {
		s.Balances[a] = b.Clone()
	}
	for owner, spenders := range l.allowances {
		m := make(map[Address]*uint256.Int, len(spenders))
		for spender, amount := range spenders {
			m[spender] = amount.Clone()
		}
		s.Allowances[owner] = m
	}
	for a := range l.taxExempt {
		s.TaxExempt = append(s.TaxExempt, a)
	}
	return s
}

// FromSnapshot rebuilds a ledger from persisted state. The conservation
// invariant is verified on load so a corrupted store surfaces immediately
// instead of as drifting balances later.
func FromSnapshot(s Snapshot) (*Ledger, error) {
	l := NewLedger()
	l.initialized = s.Initialized
	l.owner = s.Owner
	if s.TotalSupply != nil {
		l.totalSupply = s.TotalSupply.Clone()
	}
	l.taxEnabled = s.TaxEnabled
	l.taxFraction = s.TaxFraction
	l.taxReceiveAddress = s.TaxReceiveAddress
	for a, b := range s.Balances {
		l.balances[a] = b.Clone()
	}
	for owner, spenders := range s.Allowances {
		m := make(map[Address]*uint256.Int, len(spenders))
		for spender, amount := range spenders {
			m[spender] = amount.Clone()
		}
		l.allowances[owner] = m
	}
	for _, a := range s.TaxExempt {
		l.taxExempt[a] = true
	}
	if err := l.CheckConservation(); err != nil {
		return nil, fmt.Errorf("snapshot violates conservation: %w", err)
	}
	return l, nil
}
