package blueprint

import (
	"context"

	"github.com/yukikurage/signiq/internal/ctxutil"
)

// ContextKey is a Blueprint-scope dynamic-scope binding: a Provide call
// anywhere in a Body makes a value visible to every Use/Consume call in
// the subtree below it, the same way context.Context itself scopes a
// value to the calls it's threaded into. Unlike a plain
// context.WithValue, Provide and Consume both check that they're
// running inside a live Blueprint replay first, so a call made outside
// one is a reported misuse rather than a value that silently reads
// back as missing.
type ContextKey[T any] struct {
	name string
	key  *ctxutil.Key[T]
}

// NewContextKey creates a fresh Blueprint context key. name is used only
// in diagnostics; two keys created with the same name are still
// distinct bindings.
func NewContextKey[T any](name string) *ContextKey[T] {
	return &ContextKey[T]{name: name, key: ctxutil.NewKey[T](name)}
}

// Provide returns a ctx with value bound under k, visible to every
// Use/Consume call made with the returned ctx or any ctx derived from
// it. It panics if ctx is not the context of a running Blueprint body.
func (k *ContextKey[T]) Provide(ctx context.Context, value T) context.Context {
	if _, ok := ctxutil.From(ctx, driverKey); !ok {
		panic(errNotInBlueprint("context provide"))
	}
	return ctxutil.With(ctx, k.key, value)
}

// Consume reads the nearest value bound to k by an enclosing Provide
// call. It panics if ctx is not the context of a running Blueprint body,
// or if no Provide call bound k anywhere in scope.
func (k *ContextKey[T]) Consume(ctx context.Context) T {
	if _, ok := ctxutil.From(ctx, driverKey); !ok {
		panic(errNotInBlueprint("context consume"))
	}
	v, ok := ctxutil.From(ctx, k.key)
	if !ok {
		panic(errMissingContextValue(k.name))
	}
	return v
}
