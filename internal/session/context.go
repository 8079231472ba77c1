package session

import "context"

type storeContextKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// FromContext returns the Store carried by ctx. Outside the session
// middleware it returns an empty MemoryStore, so callers always see "no
// session" rather than nil.
func FromContext(ctx context.Context) Store {
	if s, ok := ctx.Value(storeContextKey{}).(Store); ok {
		return s
	}
	return NewMemoryStore(nil)
}
