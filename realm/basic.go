package realm

import (
	"context"

	"github.com/google/uuid"

	"github.com/yukikurage/signiq/resource"
)

// Subscribe is the function a BasicRealm wraps: given a tracking
// observer, it starts producing values and returns a Resource covering
// whatever bookkeeping the subscription itself needed (a timer, a
// goroutine, an open connection), not the values it publishes, which
// BasicRealm tracks on the subscriber's behalf.
type Subscribe[T any] func(ctx context.Context, observer Observer[T]) resource.Resource

// BasicRealm is a Realm built from a user-supplied Subscribe function.
// It maintains, per observation, the set of currently-live published
// values, so releasing the observation always releases every value's
// Resource, even ones the subscribe function itself forgot about, and
// so a value's own Resource can be released idempotently whether that
// happens because the observation as a whole was released or because
// the value's Resource was released on its own (a child observation
// finishing, say).
type BasicRealm[T any] struct {
	subscribe Subscribe[T]
	logf      func(format string, v ...interface{})
}

var _ Realm[int] = (*BasicRealm[int])(nil)

// Option configures a BasicRealm.
type Option[T any] func(*BasicRealm[T])

// WithLogf attaches a Logf-style diagnostic sink, matching the Logf
// convention threaded through every constructor in this repository. A
// nil Logf (the default) is a no-op.
func WithLogf[T any](logf func(format string, v ...interface{})) Option[T] {
	return func(b *BasicRealm[T]) { b.logf = logf }
}

// NewBasicRealm builds a Realm whose observations are driven by
// subscribe.
func NewBasicRealm[T any](subscribe Subscribe[T], opts ...Option[T]) *BasicRealm[T] {
	b := &BasicRealm[T]{subscribe: subscribe, logf: func(string, ...interface{}) {}}
	for _, opt := range opts {
		opt(b)
	}
	if b.logf == nil {
		b.logf = func(string, ...interface{}) {}
	}
	return b
}

// Instantiate implements Realm. Release protocol: release the
// subscription first (stopping new publications), then release every
// still-live published value, then return once that set is empty.
func (b *BasicRealm[T]) Instantiate(ctx context.Context, observer Observer[T]) resource.Resource {
	live := resource.NewGroup(resource.ModeParallel)

	tracked := func(ctx context.Context, v T) resource.Resource {
		childID := uuid.New().String()
		b.logf("basic: publishing value (child %s)", childID)
		r := observer(ctx, v)
		id := live.Add(ctx, r)
		if id == 0 {
			// the observation's live-set was already released out
			// from under us; r was released immediately by Add.
			return resource.Noop()
		}
		return resource.Func(func(ctx context.Context) error {
			return live.Remove(ctx, id)
		})
	}

	subscriptionResource := b.subscribe(ctx, tracked)

	return resource.Sequential(subscriptionResource, resource.Func(live.Release))
}
