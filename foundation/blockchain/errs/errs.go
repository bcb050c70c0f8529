// Package errs defines the stable error taxonomy shared by the ledger,
// identity registry, consensus module, and skill marketplace.
package errs

import "fmt"

// Code is one of the stable error codes a subsystem operation can return.
type Code string

// The closed set of stable error codes. Subsystems never invent new codes
// outside this set; a validation failure that doesn't fit an existing code
// is folded into the nearest applicable one with a descriptive message.
const (
	InvalidSignature     Code = "INVALID_SIGNATURE"
	InsufficientBalance  Code = "INSUFFICIENT_BALANCE"
	InvalidNonce         Code = "INVALID_NONCE"
	InvalidAmount        Code = "INVALID_AMOUNT"
	UnknownSender        Code = "UNKNOWN_SENDER"
	UnknownRecipient     Code = "UNKNOWN_RECIPIENT"
	StakeRequired        Code = "STAKE_REQUIRED"
	ReputationTooLow     Code = "REPUTATION_TOO_LOW"
	DuplicateTransaction Code = "DUPLICATE_TRANSACTION"
	InvalidSkill         Code = "INVALID_SKILL"
	ConsensusFailure     Code = "CONSENSUS_FAILURE"
)

// Error is the structured error type every core operation returns on
// failure. It carries a stable Code plus a human message, and optionally
// the nonce the ledger expected when Code is InvalidNonce.
type Error struct {
	Code     Code
	Message  string
	Expected *uint64
}

// New constructs an Error with no expected-value detail.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidNonce constructs the INVALID_NONCE error carrying the nonce the
// ledger expected.
func NewInvalidNonce(expected uint64) *Error {
	return &Error{
		Code:     InvalidNonce,
		Message:  fmt.Sprintf("invalid nonce: expected %d", expected),
		Expected: &expected,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is(err, target) to match on Code alone when target is
// an *Error with only Code set, which is how call sites typically probe
// for a specific failure without caring about the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// As reports whether err is itself an *Error and returns it, so callers can
// read its Code and Expected nonce. It does not unwrap wrapped errors.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
