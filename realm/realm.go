// Package realm implements the observation protocol every reactive
// value-producer in this repository is built on: a Realm publishes
// values to an observer, and the Resource the observer hands back for
// each value is owned by the observation that published it. Releasing
// the observation's Resource releases every value's Resource, and the
// Realm must not publish again afterward.
package realm

import (
	"context"

	"github.com/yukikurage/signiq/resource"
)

// Observer is called once per value a Realm publishes. The Resource it
// returns is owned by that publication: it must be released, and only
// be released, when the observation that produced the value is
// released.
type Observer[T any] func(ctx context.Context, value T) resource.Resource

// Realm is an abstract value-producer. Instantiate begins an
// observation: it may call observer zero or more times (synchronously
// or later, from another goroutine) and returns a Resource whose
// Release tears the whole observation down.
type Realm[T any] interface {
	Instantiate(ctx context.Context, observer Observer[T]) resource.Resource
}

// Func adapts a plain instantiate function into a Realm.
type Func[T any] func(ctx context.Context, observer Observer[T]) resource.Resource

// Instantiate implements Realm.
func (f Func[T]) Instantiate(ctx context.Context, observer Observer[T]) resource.Resource {
	return f(ctx, observer)
}

// Pure returns a Realm that, on every observation, invokes the observer
// exactly once with v, synchronously, and returns exactly the Resource
// the observer returned; no extra bookkeeping Resource is introduced.
func Pure[T any](v T) Realm[T] {
	return Func[T](func(ctx context.Context, observer Observer[T]) resource.Resource {
		return observer(ctx, v)
	})
}

// Never returns a Realm that never publishes. Instantiate returns a
// noop-equivalent Resource immediately.
func Never[T any]() Realm[T] {
	return Func[T](func(ctx context.Context, observer Observer[T]) resource.Resource {
		return resource.Noop()
	})
}

// Lazy defers the construction of the underlying Realm until the first
// Instantiate call, and builds a fresh one on every Instantiate (so two
// concurrent observations never share state unless the factory itself
// shares it).
func Lazy[T any](factory func() Realm[T]) Realm[T] {
	return Func[T](func(ctx context.Context, observer Observer[T]) resource.Resource {
		return factory().Instantiate(ctx, observer)
	})
}
