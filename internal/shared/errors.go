package shared

import "errors"

// Kind classifies failures reported by the reconciliation engine.
type Kind uint8

const (
	// KindInternal covers storage and other unexpected failures.
	KindInternal Kind = iota
	// KindUnauthorized indicates a missing or invalid caller identity.
	KindUnauthorized
	// KindForbidden indicates a store outside the caller's authorized set.
	KindForbidden
	// KindNotFound indicates an absent row or one already past the requested transition.
	KindNotFound
	// KindInvalidInput indicates rejected input; nothing was written.
	KindInvalidInput
	// KindConflict indicates a lost race on a uniqueness constraint; retry the operation.
	KindConflict
	// KindLocked indicates a mutation against a locked record.
	KindLocked
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindLocked:
		return "locked"
	default:
		return "internal"
	}
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded sentinel error.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap tags err with kind, keeping it matchable through errors.Is.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of the outermost kinded error in the chain.
func KindOf(err error) Kind {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	// ErrUnauthorized indicates no caller identity was presented.
	ErrUnauthorized = E(KindUnauthorized, "caller identity required")
	// ErrForbidden indicates the store is outside the caller's authorized set.
	ErrForbidden = E(KindForbidden, "store not authorized for caller")
	// ErrConflict indicates a concurrent writer won; the caller should retry.
	ErrConflict = E(KindConflict, "concurrent update, retry the operation")
)
