package shared

import "context"

type callerContextKey struct{}

// Caller identifies the authenticated user behind a request together with the
// stores they may act on.
type Caller struct {
	UserID   int64
	StoreIDs []int64
}

// CanAccessStore reports whether storeID is in the caller's authorized set.
func (c Caller) CanAccessStore(storeID int64) bool {
	for _, id := range c.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
