package realm

import (
	"context"

	"github.com/yukikurage/signiq/resource"
)

// Map returns a Realm that republishes every value r publishes, passed
// through f. It is a BasicRealm whose subscribe simply instantiates the
// parent and wraps each value.
func Map[T, U any](r Realm[T], f func(T) U) Realm[U] {
	return NewBasicRealm[U](func(ctx context.Context, observer Observer[U]) resource.Resource {
		return r.Instantiate(ctx, func(ctx context.Context, v T) resource.Resource {
			return observer(ctx, f(v))
		})
	})
}

// Filter returns a Realm that republishes only the values of r for
// which p holds. A filtered-out value still needs a Resource to return
// to r's observer protocol; since it owns nothing, that Resource is a
// noop.
func Filter[T any](r Realm[T], p func(T) bool) Realm[T] {
	return NewBasicRealm[T](func(ctx context.Context, observer Observer[T]) resource.Resource {
		return r.Instantiate(ctx, func(ctx context.Context, v T) resource.Resource {
			if !p(v) {
				return resource.Noop()
			}
			return observer(ctx, v)
		})
	})
}

// Merge returns a Realm publishing every value either a or b publish,
// in whatever order they occur; both sides are instantiated against the
// same observer, and the merged Resource releases both in parallel (no
// inter-side ordering is implied).
func Merge[T any](a, b Realm[T]) Realm[T] {
	return NewBasicRealm[T](func(ctx context.Context, observer Observer[T]) resource.Resource {
		leftObs := a.Instantiate(ctx, observer)
		rightObs := b.Instantiate(ctx, observer)
		return resource.Parallel(leftObs, rightObs)
	})
}

// FlatMap returns a Realm that, for every value the outer Realm
// publishes, instantiates f(value) against the same observer. The
// resulting child values are owned by the outer value's observation:
// releasing the outer observation's Resource releases every inner
// child Realm observation it produced.
func FlatMap[T, U any](r Realm[T], f func(T) Realm[U]) Realm[U] {
	return NewBasicRealm[U](func(ctx context.Context, observer Observer[U]) resource.Resource {
		return r.Instantiate(ctx, func(ctx context.Context, v T) resource.Resource {
			child := f(v)
			return child.Instantiate(ctx, observer)
		})
	})
}
