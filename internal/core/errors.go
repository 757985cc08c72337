package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the failure class every error leaving the pipeline is mapped to.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientProvider
	KindFatalProvider
	KindRetrieval
	KindParse
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransientProvider:
		return "transient provider error"
	case KindFatalProvider:
		return "fatal provider error"
	case KindRetrieval:
		return "retrieval error"
	case KindParse:
		return "parse error"
	case KindValidation:
		return "validation error"
	default:
		return "unknown error"
	}
}

// Named causes. They are wrapped inside an *Error of the matching kind.
var (
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrProviderTimeout       = errors.New("provider timeout")
	ErrProviderRateLimited   = errors.New("provider rate limited")
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrProviderQuotaExceeded = errors.New("provider quota exceeded")
	ErrProviderAuth          = errors.New("provider authentication failed")
	ErrProviderRejected      = errors.New("provider rejected request")
	ErrStoreUnavailable      = errors.New("vector store unavailable")
	ErrSchemaMismatch        = errors.New("output does not match schema")
	ErrDimensionMismatch     = errors.New("embedding dimension mismatch")
)

// Kind sentinels for errors.Is checks, e.g. errors.Is(err, core.ErrFatalProvider).
var (
	ErrTransientProvider = &Error{Kind: KindTransientProvider}
	ErrFatalProvider     = &Error{Kind: KindFatalProvider}
	ErrRetrieval         = &Error{Kind: KindRetrieval}
	ErrParse             = &Error{Kind: KindParse}
	ErrValidation        = &Error{Kind: KindValidation}
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind that carries no cause, which
// makes the kind sentinels usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain.
// Context cancellation and deadlines count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransientProvider
	}
	return KindUnknown
}

// IsRetryable reports whether err should be retried by a retry policy.
// Only transient provider errors and retrieval errors qualify; a cancelled
// caller context never does.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindTransientProvider, KindRetrieval:
		return true
	default:
		return false
	}
}
