// Package token implements a fungible token ledger with an integrated
// transfer tax. The ledger tracks balances, allowances, and total supply
// for a fixed token, and diverts a configurable fraction of non-exempt
// transfers to a designated collection address.
//
// The package is pure state-machine logic: no I/O, no locking, no clocks.
// Callers provide serialized execution and persistence; every mutating
// operation either applies fully and returns a Receipt of its events, or
// fails and leaves the ledger untouched.
package token

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Fixed token metadata.
const (
	// TokenName is the human-readable token name.
	TokenName = "Dyfusion"
	// TokenSymbol is the token ticker symbol.
	TokenSymbol = "DFX"
	// TokenDecimals is the number of base-unit decimals.
	TokenDecimals = 18
	// DefaultTaxFraction is the initial tax denominator: a taxed transfer
	// of amount A pays a fee of A/100 (1%).
	DefaultTaxFraction = 100
)

// InitialSupply is the fixed supply minted to the initializer:
// 60,000 tokens in 10^18 base units.
var InitialSupply = uint256.MustFromDecimal("60000000000000000000000")

// Ledger is the singleton token ledger state. It is created once via
// Initialize (or rebuilt from a Snapshot) and mutated only through its
// operation methods. The zero value is a valid uninitialized ledger.
type Ledger struct {
	initialized bool
	owner       Address

	totalSupply *uint256.Int
	balances    map[Address]*uint256.Int
	allowances  map[Address]map[Address]*uint256.Int

	taxEnabled        bool
	taxFraction       uint16
	taxReceiveAddress Address
	taxExempt         map[Address]bool
}

// NewLedger returns an empty, uninitialized ledger.
func NewLedger() *Ledger {
	return &Ledger{
		totalSupply: uint256.NewInt(0),
		balances:    make(map[Address]*uint256.Int),
		allowances:  make(map[Address]map[Address]*uint256.Int),
		taxExempt:   make(map[Address]bool),
	}
}

// Initialize sets up the ledger exactly once: fixes the metadata defaults,
// mints the initial supply to the caller, marks the caller tax-exempt, and
// records the caller as owner. A second call fails with ErrAlreadyInitialized.
func (l *Ledger) Initialize(caller Address) (*Receipt, error) {
	if l.initialized {
		return nil, ErrAlreadyInitialized
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}

	l.initialized = true
	l.owner = caller
	l.taxEnabled = false
	l.taxFraction = DefaultTaxFraction
	l.taxExempt[caller] = true

	r := newReceipt()
	l.mint(r, caller, InitialSupply)
	r.touchConfig()
	r.touchExemption(caller)
	return r, nil
}

// Transfer moves amount from the caller to recipient, applying the transfer
// tax unless the caller is exempt or tax is disabled.
func (l *Ledger) Transfer(caller, recipient Address, amount *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	r := newReceipt()
	if err := l.move(r, caller, recipient, amount); err != nil {
		return nil, err
	}
	return r, nil
}

// TransferFrom moves amount from sender to recipient on behalf of the
// caller, consuming exactly amount of the caller's allowance from sender.
// The allowance check happens before any balance moves, so a failure leaves
// both balances and the allowance untouched.
func (l *Ledger) TransferFrom(caller, sender, recipient Address, amount *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	current := l.allowance(sender, caller)
	if current.Lt(amount) {
		return nil, ErrInsufficientAllowance
	}

	r := newReceipt()
	if err := l.move(r, sender, recipient, amount); err != nil {
		return nil, err
	}

	remaining := new(uint256.Int).Sub(current, amount)
	l.setAllowance(sender, caller, remaining)
	r.touchAllowance(sender, caller)
	r.emit(Event{Kind: KindApproval, From: sender, Spender: caller, Amount: remaining.Clone()})
	return r, nil
}

// Approve sets the caller's allowance for spender to amount, replacing any
// previous value. Callers racing a replacement of a non-zero allowance are
// exposed to the usual reordering hazard; IncreaseAllowance and
// DecreaseAllowance are the safe alternative.
func (l *Ledger) Approve(caller, spender Address, amount *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() || spender.IsZero() {
		return nil, ErrZeroAddress
	}

	l.setAllowance(caller, spender, amount.Clone())
	r := newReceipt()
	r.touchAllowance(caller, spender)
	r.emit(Event{Kind: KindApproval, From: caller, Spender: spender, Amount: amount.Clone()})
	return r, nil
}

// IncreaseAllowance raises the caller's allowance for spender by delta,
// failing with ErrAllowanceOverflow if the sum exceeds the maximum
// representable value. DecreaseAllowance never wraps below zero; this is
// the symmetric guard on the way up.
func (l *Ledger) IncreaseAllowance(caller, spender Address, delta *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() || spender.IsZero() {
		return nil, ErrZeroAddress
	}

	updated, overflow := new(uint256.Int).AddOverflow(l.allowance(caller, spender), delta)
	if overflow {
		return nil, ErrAllowanceOverflow
	}
	l.setAllowance(caller, spender, updated)
	r := newReceipt()
	r.touchAllowance(caller, spender)
	r.emit(Event{Kind: KindApproval, From: caller, Spender: spender, Amount: updated.Clone()})
	return r, nil
}

// DecreaseAllowance lowers the caller's allowance for spender by delta,
// failing with ErrInsufficientAllowance if delta exceeds the current value.
func (l *Ledger) DecreaseAllowance(caller, spender Address, delta *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() || spender.IsZero() {
		return nil, ErrZeroAddress
	}
	current := l.allowance(caller, spender)
	if current.Lt(delta) {
		return nil, ErrInsufficientAllowance
	}

	updated := new(uint256.Int).Sub(current, delta)
	l.setAllowance(caller, spender, updated)
	r := newReceipt()
	r.touchAllowance(caller, spender)
	r.emit(Event{Kind: KindApproval, From: caller, Spender: spender, Amount: updated.Clone()})
	return r, nil
}

// Burn destroys amount from the caller's own balance, reducing total
// supply. This is the only externally triggerable supply change after
// initialization.
func (l *Ledger) Burn(caller Address, amount *uint256.Int) (*Receipt, error) {
	if !l.initialized {
		return nil, ErrNotInitialized
	}
	if caller.IsZero() {
		return nil, ErrZeroAddress
	}
	balance := l.balance(caller)
	if balance.Lt(amount) {
		return nil, ErrInsufficientBalance
	}

	r := newReceipt()
	l.balances[caller] = new(uint256.Int).Sub(balance, amount)
	l.totalSupply = new(uint256.Int).Sub(l.totalSupply, amount)
	r.touchAccount(caller)
	r.touchSupply()
	r.emit(Event{Kind: KindTransfer, From: caller, To: ZeroAddress, Amount: amount.Clone()})
	return r, nil
}

// SetTaxEnabled toggles whether non-exempt transfers are taxed. Owner only.
func (l *Ledger) SetTaxEnabled(caller Address, enabled bool) (*Receipt, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	l.taxEnabled = enabled
	r := newReceipt()
	r.touchConfig()
	r.emit(Event{Kind: KindConfigChanged, Field: FieldTaxEnabled, Value: strconv.FormatBool(enabled)})
	return r, nil
}

// SetTaxReceiveAddress sets the account that collects transfer fees.
// Owner only.
func (l *Ledger) SetTaxReceiveAddress(caller, account Address) (*Receipt, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	l.taxReceiveAddress = account
	r := newReceipt()
	r.touchConfig()
	r.emit(Event{Kind: KindConfigChanged, To: account, Field: FieldTaxReceiveAddress, Value: account.String()})
	return r, nil
}

// SetAddressTaxExempt adds or removes an account from the tax-exempt set.
// Owner only.
func (l *Ledger) SetAddressTaxExempt(caller, account Address, exempt bool) (*Receipt, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	if exempt {
		l.taxExempt[account] = true
	} else {
		delete(l.taxExempt, account)
	}
	r := newReceipt()
	r.touchExemption(account)
	r.emit(Event{Kind: KindConfigChanged, To: account, Field: FieldTaxExempt, Value: strconv.FormatBool(exempt)})
	return r, nil
}

// SetTaxFraction sets the tax denominator. Owner only. The reference
// behavior accepts any value including zero; a zero fraction makes the next
// taxed transfer fail with ErrZeroTaxFraction.
func (l *Ledger) SetTaxFraction(caller Address, fraction uint16) (*Receipt, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	l.taxFraction = fraction
	r := newReceipt()
	r.touchConfig()
	r.emit(Event{Kind: KindConfigChanged, Field: FieldTaxFraction, Value: strconv.FormatUint(uint64(fraction), 10)})
	return r, nil
}

// TransferOwnership hands administrative control to newOwner. Owner only.
func (l *Ledger) TransferOwnership(caller, newOwner Address) (*Receipt, error) {
	if err := l.requireOwner(caller); err != nil {
		return nil, err
	}
	if newOwner.IsZero() {
		return nil, ErrZeroAddress
	}
	l.owner = newOwner
	r := newReceipt()
	r.touchConfig()
	r.emit(Event{Kind: KindConfigChanged, To: newOwner, Field: FieldOwner, Value: newOwner.String()})
	return r, nil
}

// move is the internal transfer algorithm shared by Transfer and
// TransferFrom. All checks precede all mutations so a failure leaves the
// ledger untouched.
//
// Exempt senders, and all senders while tax is disabled, move the full
// amount directly. Otherwise the fee is amount/taxFraction (floor division)
// and the complement goes to the recipient, so fee+net == amount exactly.
// If the tax receive address was never configured the fee credits the zero
// address: the value stays in totalSupply but is out of circulation. The
// service layer logs a warning when that happens.
func (l *Ledger) move(r *Receipt, sender, recipient Address, amount *uint256.Int) error {
	if sender.IsZero() || recipient.IsZero() {
		return ErrZeroAddress
	}

	taxed := l.taxEnabled && !l.taxExempt[sender]
	if taxed && l.taxFraction == 0 {
		return ErrZeroTaxFraction
	}

	balance := l.balance(sender)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}

	if !taxed {
		l.balances[sender] = new(uint256.Int).Sub(balance, amount)
		l.credit(recipient, amount)
		r.touchAccount(sender)
		r.touchAccount(recipient)
		r.emit(Event{Kind: KindTransfer, From: sender, To: recipient, Amount: amount.Clone()})
		return nil
	}

	fee := new(uint256.Int).Div(amount, uint256.NewInt(uint64(l.taxFraction)))
	net := new(uint256.Int).Sub(amount, fee)

	l.balances[sender] = new(uint256.Int).Sub(balance, amount)
	l.credit(recipient, net)
	l.credit(l.taxReceiveAddress, fee)
	r.touchAccount(sender)
	r.touchAccount(recipient)
	r.touchAccount(l.taxReceiveAddress)
	r.emit(Event{Kind: KindTransfer, From: sender, To: recipient, Amount: net})
	r.emit(Event{Kind: KindTransfer, From: sender, To: l.taxReceiveAddress, Amount: fee})
	return nil
}

// mint credits account and grows total supply. Only reachable from
// Initialize; there is no external mint path.
func (l *Ledger) mint(r *Receipt, account Address, amount *uint256.Int) {
	l.credit(account, amount)
	l.totalSupply = new(uint256.Int).Add(l.totalSupply, amount)
	r.touchAccount(account)
	r.touchSupply()
	r.emit(Event{Kind: KindTransfer, From: ZeroAddress, To: account, Amount: amount.Clone()})
}

func (l *Ledger) credit(account Address, amount *uint256.Int) {
	l.balances[account] = new(uint256.Int).Add(l.balance(account), amount)
}

func (l *Ledger) requireOwner(caller Address) error {
	if !l.initialized {
		return ErrNotInitialized
	}
	if caller != l.owner {
		return ErrNotAuthorized
	}
	return nil
}

func (l *Ledger) balance(account Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func (l *Ledger) allowance(owner, spender Address) *uint256.Int {
	if spenders, ok := l.allowances[owner]; ok {
		if a, ok := spenders[spender]; ok {
			return a
		}
	}
	return uint256.NewInt(0)
}

func (l *Ledger) setAllowance(owner, spender Address, amount *uint256.Int) {
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[Address]*uint256.Int)
		l.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

// Initialized reports whether Initialize has run.
func (l *Ledger) Initialized() bool {
	return l.initialized
}

// Owner returns the current owner account.
func (l *Ledger) Owner() Address {
	return l.owner
}

// Name returns the fixed token name.
func (l *Ledger) Name() string {
	return TokenName
}

// Symbol returns the fixed token symbol.
func (l *Ledger) Symbol() string {
	return TokenSymbol
}

// Decimals returns the fixed base-unit decimals.
func (l *Ledger) Decimals() uint8 {
	return TokenDecimals
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return l.totalSupply.Clone()
}

// BalanceOf returns the balance of account, zero for accounts never
// credited.
func (l *Ledger) BalanceOf(account Address) *uint256.Int {
	return l.balance(account).Clone()
}

// Allowance returns the remaining allowance granted by owner to spender,
// zero if never set.
func (l *Ledger) Allowance(owner, spender Address) *uint256.Int {
	return l.allowance(owner, spender).Clone()
}

// TaxEnabled reports whether non-exempt transfers are taxed.
func (l *Ledger) TaxEnabled() bool {
	return l.taxEnabled
}

// TaxFraction returns the tax denominator.
func (l *Ledger) TaxFraction() uint16 {
	return l.taxFraction
}

// TaxReceiveAddress returns the fee collection account.
func (l *Ledger) TaxReceiveAddress() Address {
	return l.taxReceiveAddress
}

// IsTaxExempt reports whether account is in the tax-exempt set.
func (l *Ledger) IsTaxExempt(account Address) bool {
	return l.taxExempt[account]
}

// CheckConservation verifies that the sum of all balances equals the total
// supply, returning an error describing the discrepancy if not.
func (l *Ledger) CheckConservation() error {
	sum := uint256.NewInt(0)
	for _, b := range l.balances {
		sum = new(uint256.Int).Add(sum, b)
	}
	if !sum.Eq(l.totalSupply) {
		return fmt.Errorf("balance sum %s != total supply %s", sum.Dec(), l.totalSupply.Dec())
	}
	return nil
}
