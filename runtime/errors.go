package runtime

import "errors"

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions.
// Callers should branch on Kind/RuleID rather than matching error strings.
//
// NOTE: Error() strings are intentionally kept human-readable and may evolve.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindDecode covers malformed instruction or state data, including the
	// unrecognized-opcode case.
	KindDecode Kind = "Decode"
	// KindPrivilege covers missing signatures and signer/writable
	// escalation across invocations.
	KindPrivilege Kind = "Privilege"
	// KindOwner covers violations of the account-ownership rules.
	KindOwner Kind = "Owner"
	// KindFunds covers lamport debit and conservation violations.
	KindFunds Kind = "Funds"
	// KindArithmetic covers overflow and underflow in program arithmetic.
	KindArithmetic Kind = "Arithmetic"
	// KindState covers program-level state violations (uninitialized,
	// already initialized, mismatched accounts).
	KindState Kind = "State"
	// KindProgram covers unknown programs and invocation-depth limits.
	KindProgram Kind = "Program"
	KindInternal Kind = "Internal"
)

// Error is the runtime's structured error type.
//
// RuleID is a stable identifier (e.g. RT-PRIV-001, CALC-DEC-002) naming the
// violated rule. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured runtime error. Program packages use this
// with their own RuleID prefixes.
func NewError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// WrapError is NewError with an underlying cause.
func WrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or KindInternal if the
// error carries no structure.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
