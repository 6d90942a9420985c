package coordcache

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies coordinator errors so callers can branch on category
// instead of parsing messages.
type Kind int

const (
	// KindInvalidArgument: null/empty key or region, non-positive timeout,
	// handle-unsupported precision.
	KindInvalidArgument Kind = iota
	// KindInvalidState: strict update/get-or-add failures (factory nil, too
	// many retries, key absent, retries exhausted), construction with zero
	// handles.
	KindInvalidState
	// KindDisposed: any operation attempted after Close.
	KindDisposed
	// KindCanceledByCaller: the caller's context was canceled or timed out.
	KindCanceledByCaller
	// KindTransientBackendFailure: a handle-level I/O/transport error. The
	// coordinator does not retry these across handles; it aggregates
	// boolean success and logs.
	KindTransientBackendFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidState:
		return "InvalidState"
	case KindDisposed:
		return "Disposed"
	case KindCanceledByCaller:
		return "CanceledByCaller"
	case KindTransientBackendFailure:
		return "TransientBackendFailure"
	default:
		return "Unknown"
	}
}

// CoordinatorError is the coordinator's single error type. Op names the
// failing operation (e.g. "Update", "GetOrAdd"); Key/Region are set when the
// failure is key-scoped.
type CoordinatorError struct {
	Kind   Kind
	Op     string
	Key    string
	Region string
	Err    error
}

func newErr(kind Kind, op, key, region string, err error) *CoordinatorError {
	return &CoordinatorError{Kind: kind, Op: op, Key: key, Region: region, Err: err}
}

func (e *CoordinatorError) Error() string {
	var b strings.Builder
	b.WriteString("coordcache: ")
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	if e.Region != "" {
		fmt.Fprintf(&b, " region=%q", e.Region)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CoordinatorError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, coordcache.ErrDisposed) style sentinels match by
// Kind when the caller doesn't care about the wrapped cause.
func (e *CoordinatorError) Is(target error) bool {
	t, ok := target.(*CoordinatorError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons against a bare Kind.
var (
	ErrDisposed         = &CoordinatorError{Kind: KindDisposed}
	ErrInvalidArgument  = &CoordinatorError{Kind: KindInvalidArgument}
	ErrInvalidState     = &CoordinatorError{Kind: KindInvalidState}
	ErrCanceledByCaller = &CoordinatorError{Kind: KindCanceledByCaller}
)

// MultiError aggregates independent per-handle failures from fan-out
// operations (Put, Clear, ClearRegion) where the coordinator must keep
// going after a single handle's transient failure. Unwrap returns every
// cause, so errors.Is/As see each of them.
type MultiError struct {
	Op     string
	Causes []error
}

func (e *MultiError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("coordcache: %s: no errors", e.Op)
	}
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("coordcache: %s: %d handle(s) failed: %s", e.Op, len(e.Causes), strings.Join(msgs, "; "))
}

func (e *MultiError) Unwrap() []error { return e.Causes }

// appendErr appends err to errs when non-nil, returning the possibly-grown
// slice. Kept as a tiny helper so fan-out call sites stay one-liners.
func appendErr(errs []error, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, err)
}

// asCoordErr extracts the *CoordinatorError kind, if any, from err.
func asCoordErr(err error) (*CoordinatorError, bool) {
	var ce *CoordinatorError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
