// Package corverrors carries the core's error taxonomy as a typed result
// rather than a bare error or a process-wide status code: callers
// pattern-match on Kind instead of inspecting globals. Wrapping uses
// golang.org/x/xerrors so causes remain inspectable with xerrors.Is/As.
package corverrors

import "golang.org/x/xerrors"

// Kind classifies a core error for the caller's recovery policy.
type Kind int

const (
	// Codec reports malformed wire bytes.
	Codec Kind = iota
	// InvalidTransaction reports a context-free transaction shape, id or
	// signature failure.
	InvalidTransaction
	// InvalidBlock reports a context-free block shape, Merkle, or
	// proof-of-work failure.
	InvalidBlock
	// Context reports a context-sensitive failure: unknown parent,
	// double-spend against the UTXO view, bad retarget, wrong coinbase
	// amount.
	Context
	// Storage reports a failure propagated from the persistent store.
	Storage
	// DuplicateBlock is a soft error: the block is already known.
	DuplicateBlock
	// DuplicateTransaction is a soft error: the transaction is already
	// known (in the pool or a connected block).
	DuplicateTransaction
)

func (k Kind) String() string {
	switch k {
	case Codec:
		return "codec"
	case InvalidTransaction:
		return "invalid_transaction"
	case InvalidBlock:
		return "invalid_block"
	case Context:
		return "context"
	case Storage:
		return "storage"
	case DuplicateBlock:
		return "duplicate_block"
	case DuplicateTransaction:
		return "duplicate_transaction"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every validation and storage path in
// the core returns. Reason is a short machine-stable tag (e.g.
// "merkle_mismatch", "pow_fail") so tests and callers can assert on it
// without string-matching the full message.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.Reason + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.Reason
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As and xerrors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an Error that wraps cause, annotated with reason.
func Wrap(kind Kind, reason string, cause error) *Error {
	if cause == nil {
		return New(kind, reason)
	}
	return &Error{Kind: kind, Reason: reason, cause: cause}
}

// Is reports whether err is a core Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if !xerrors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
