package token

import "github.com/holiman/uint256"

// EventKind identifies the kind of a ledger event.
type EventKind string

const (
	// KindTransfer records value moving between accounts. Mints appear as
	// transfers from the zero address, burns as transfers to it.
	KindTransfer EventKind = "transfer"
	// KindApproval records an allowance being set to a new absolute value.
	KindApproval EventKind = "approval"
	// KindConfigChanged records an administrative configuration change.
	KindConfigChanged EventKind = "config.changed"
)

// Configuration fields reported by config.changed events.
const (
	FieldTaxEnabled        = "tax_enabled"
	FieldTaxFraction       = "tax_fraction"
	FieldTaxReceiveAddress = "tax_receive_address"
	FieldTaxExempt         = "tax_exempt"
	FieldOwner             = "owner"
)

// Event is one observable record produced by a mutating ledger operation.
// Events are facts about state that has already changed; they are emitted
// in operation order as part of the same atomic state transition.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind
	// From is the debited account for transfers, or the allowance owner
	// for approvals.
	From Address
	// To is the credited account for transfers, or the affected account
	// for config changes that target one.
	To Address
	// Spender is the approved account for approvals.
	Spender Address
	// Amount is the transferred or approved value.
	Amount *uint256.Int
	// Field names the configuration field for config.changed events.
	Field string
	// Value is the new configuration value, rendered as a string.
	Value string
}

// allowanceKey identifies one (owner, spender) allowance pair.
type allowanceKey struct {
	owner   Address
	spender Address
}

// AllowancePair is an exported (owner, spender) pair, used by stores to
// persist touched allowances.
type AllowancePair struct {
	Owner   Address
	Spender Address
}

// Receipt is the result of one successful mutating operation: the ordered
// event list plus bookkeeping of exactly which state the operation touched,
// so a store can persist the change without diffing the full ledger.
type Receipt struct {
	events     []Event
	accounts   map[Address]struct{}
	allowances map[allowanceKey]struct{}
	exemptions map[Address]struct{}
	config     bool
	supply     bool
}

func newReceipt() *Receipt {
	return &Receipt{
		accounts:   make(map[Address]struct{}),
		allowances: make(map[allowanceKey]struct{}),
		exemptions: make(map[Address]struct{}),
	}
}

func (r *Receipt) emit(e Event) {
	r.events = append(r.events, e)
}

func (r *Receipt) touchAccount(a Address) {
	r.accounts[a] = struct{}{}
}

func (r *Receipt) touchAllowance(owner, spender Address) {
	r.allowances[allowanceKey{owner: owner, spender: spender}] = struct{}{}
}

func (r *Receipt) touchExemption(a Address) {
	r.exemptions[a] = struct{}{}
}

func (r *Receipt) touchConfig() {
	r.config = true
}

func (r *Receipt) touchSupply() {
	r.supply = true
}

// Events returns the ordered events produced by the operation.
func (r *Receipt) Events() []Event {
	return r.events
}

// TouchedAccounts returns the accounts whose balances changed.
func (r *Receipt) TouchedAccounts() []Address {
	out := make([]Address, 0, len(r.accounts))
	for a := range r.accounts {
		out = append(out, a)
	}
	return out
}

// TouchedAllowances returns the (owner, spender) pairs whose allowances
// changed.
func (r *Receipt) TouchedAllowances() []AllowancePair {
	out := make([]AllowancePair, 0, len(r.allowances))
	for k := range r.allowances {
		out = append(out, AllowancePair{Owner: k.owner, Spender: k.spender})
	}
	return out
}

// TouchedExemptions returns the accounts whose tax-exempt flag changed.
func (r *Receipt) TouchedExemptions() []Address {
	out := make([]Address, 0, len(r.exemptions))
	for a := range r.exemptions {
		out = append(out, a)
	}
	return out
}

// ConfigChanged reports whether scalar configuration (owner, tax settings,
// initialized flag) changed.
func (r *Receipt) ConfigChanged() bool {
	return r.config
}

// SupplyChanged reports whether the total supply changed.
func (r *Receipt) SupplyChanged() bool {
	return r.supply
}
