package hooks

import (
	"context"
	"time"

	"github.com/yukikurage/signiq/internal/ctxutil"
	"github.com/yukikurage/signiq/realm"
)

// Clock is the timer source UseTimeout uses. It exists so tests can
// drive time manually instead of waiting on wall-clock timers.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the Clock UseTimeout falls back to when no Clock has
// been installed with WithClock.
func RealClock() Clock { return realClock{} }

var clockKey = ctxutil.NewKey[Clock]("hooks.clock")

// WithClock installs a Clock for every UseTimeout call made with ctx or
// a context derived from it. This is ambient configuration, not a
// Blueprint-scope binding like blueprint.ContextKey: it has a sensible
// default (RealClock) and is read the same way whether or not a
// Blueprint happens to be running, so it is a plain context.Context
// value rather than something routed through Provide/Consume.
func WithClock(ctx context.Context, c Clock) context.Context {
	return ctxutil.With(ctx, clockKey, c)
}

func clockFrom(ctx context.Context) Clock {
	if c, ok := ctxutil.From(ctx, clockKey); ok && c != nil {
		return c
	}
	return RealClock()
}

// UseTimeout suspends the calling Blueprint body at this point until d
// has elapsed (per the installed Clock, or wall-clock time by default),
// then resolves to struct{}{}. It is implemented as an EffectRealm whose
// Maker always takes the asynchronous branch, since a timeout, unlike
// most effects, can never have an answer ready synchronously.
func UseTimeout(ctx context.Context, d time.Duration) struct{} {
	clock := clockFrom(ctx)
	return UseEffect(ctx, func(effCtx context.Context, addResource realm.AddResource) (realm.Result[struct{}], <-chan realm.Result[struct{}]) {
		pending := make(chan realm.Result[struct{}], 1)
		timer := clock.After(d)
		go func() {
			defer close(pending)
			select {
			case <-timer:
				pending <- realm.Result[struct{}]{}
			case <-effCtx.Done():
			}
		}()
		return realm.Result[struct{}]{}, pending
	})
}
