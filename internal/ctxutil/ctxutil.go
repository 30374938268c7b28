// Package ctxutil holds small generic context-value helpers. It
// generalizes the single well-known wait-group key pattern (store a
// typed value under a private key type, fetch it back with a typed
// getter) to an arbitrary caller-declared key, which is what the
// blueprint package's dynamic-scope context injection needs.
package ctxutil

import "context"

// Key is an opaque, comparable handle for a value stored in a Go
// context.Context. Each call to NewKey produces a distinct key even if
// two keys are created for the same Go type, matching the "symbol"
// semantics described for Blueprint's user-context map.
type Key[T any] struct {
	name string
}

// NewKey creates a fresh context key. name is used only for String/
// diagnostics; it does not affect identity (two keys with the same name
// are still distinct, since comparison is by the returned pointer-typed
// key, not by name).
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

func (k *Key[T]) String() string {
	if k == nil {
		return "<nil key>"
	}
	return k.name
}

// With returns a new context with v stored under k.
func With[T any](ctx context.Context, k *Key[T], v T) context.Context {
	return context.WithValue(ctx, k, v)
}

// From extracts the value stored under k, if any.
func From[T any](ctx context.Context, k *Key[T]) (T, bool) {
	var zero T
	val := ctx.Value(k)
	if val == nil {
		return zero, false
	}
	t, ok := val.(T)
	return t, ok
}
