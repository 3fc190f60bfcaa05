package token

import "errors"

// Ledger operation errors. Every failed operation leaves the ledger
// untouched; these sentinels are the complete failure taxonomy.
var (
	// ErrZeroAddress indicates an account argument required to be non-zero
	// was the zero address.
	ErrZeroAddress = errors.New("zero address operand")

	// ErrInsufficientBalance indicates a debit exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance indicates a delegated spend or allowance
	// decrease exceeds the current allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrNotAuthorized indicates the caller is not the owner for an
	// administrative action.
	ErrNotAuthorized = errors.New("caller is not the owner")

	// ErrAlreadyInitialized indicates Initialize was invoked more than once.
	ErrAlreadyInitialized = errors.New("ledger already initialized")

	// ErrNotInitialized indicates an operation was invoked before Initialize.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrZeroTaxFraction indicates a taxed transfer was attempted while the
	// tax fraction is zero. The setter accepts zero without validation;
	// the fault surfaces here as a defined rejection instead of a runtime
	// division panic.
	ErrZeroTaxFraction = errors.New("tax fraction is zero")

	// ErrAllowanceOverflow indicates an allowance increase would exceed the
	// maximum representable value. The grant is rejected rather than wrapped.
	ErrAllowanceOverflow = errors.New("allowance overflow")
)

// Error codes surfaced to callers over the wire. Stable strings; do not
// reorder or rename.
const (
	CodeZeroAddressOperand    = "ZERO_ADDRESS_OPERAND"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	CodeNotAuthorized         = "NOT_AUTHORIZED"
	CodeAlreadyInitialized    = "ALREADY_INITIALIZED"
	CodeNotInitialized        = "NOT_INITIALIZED"
	CodeZeroTaxFraction       = "ZERO_TAX_FRACTION"
	CodeAllowanceOverflow     = "ALLOWANCE_OVERFLOW"
	CodeUnknown               = "UNKNOWN"
)

// ErrorCode maps a ledger error to its stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrZeroAddress):
		return CodeZeroAddressOperand
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrInsufficientAllowance):
		return CodeInsufficientAllowance
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized
	case errors.Is(err, ErrAlreadyInitialized):
		return CodeAlreadyInitialized
	case errors.Is(err, ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, ErrZeroTaxFraction):
		return CodeZeroTaxFraction
	case errors.Is(err, ErrAllowanceOverflow):
		return CodeAllowanceOverflow
	default:
		return CodeUnknown
	}
}
