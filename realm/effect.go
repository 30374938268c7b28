package realm

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/resource"
)

// Result is what a Maker produces: either a value, or an error if the
// effect failed.
type Result[T any] struct {
	Value T
	Err   error
}

// AddResource lets a Maker register an extra Resource (something it
// acquired while computing, independent of the value it eventually
// publishes) to be torn down alongside the effect's own computation.
type AddResource func(resource.Resource)

// Maker computes the single value an EffectRealm publishes. It is
// handed a context that is canceled when the observation is released
// (the "abort signal" in spec terms) and an AddResource callback.
//
// If pending is nil, result is the final, synchronous answer: the
// maker has already finished by the time it returns.
//
// If pending is non-nil, the maker is still working; result is ignored
// and the real answer arrives later on pending (which must eventually
// receive exactly one Result and then may be closed, or may simply
// close without a value if the maker abandoned the attempt, e.g.
// because ctx was canceled).
type Maker[T any] func(ctx context.Context, addResource AddResource) (result Result[T], pending <-chan Result[T])

// EffectRealm is a Realm that runs its Maker once per observation and
// publishes at most one value. Release aborts the Maker (by canceling
// its context) and tears down whatever it registered via AddResource.
type EffectRealm[T any] struct {
	maker Maker[T]
	logf  func(format string, v ...interface{})
}

var _ Realm[int] = (*EffectRealm[int])(nil)

// EffectOption configures an EffectRealm.
type EffectOption[T any] func(*EffectRealm[T])

// WithEffectLogf attaches a Logf-style diagnostic sink used to report
// (and swallow) Maker failures: an in-flight effect's failure must not
// poison the Realm graph.
func WithEffectLogf[T any](logf func(format string, v ...interface{})) EffectOption[T] {
	return func(e *EffectRealm[T]) { e.logf = logf }
}

// NewEffectRealm builds an EffectRealm around maker.
func NewEffectRealm[T any](maker Maker[T], opts ...EffectOption[T]) *EffectRealm[T] {
	e := &EffectRealm[T]{maker: maker, logf: func(string, ...interface{}) {}}
	for _, opt := range opts {
		opt(e)
	}
	if e.logf == nil {
		e.logf = func(string, ...interface{}) {}
	}
	return e
}

// Instantiate implements Realm. It runs the Maker immediately.
func (e *EffectRealm[T]) Instantiate(ctx context.Context, observer Observer[T]) resource.Resource {
	abortCtx, cancel := context.WithCancel(ctx)
	computation := resource.NewGroup(resource.ModeParallel)
	addResource := func(r resource.Resource) { computation.Add(abortCtx, r) }

	result, pending := e.maker(abortCtx, addResource)

	if pending == nil {
		// Synchronous branch.
		if result.Err != nil {
			e.logf("effect: maker failed synchronously: %v", result.Err)
			return resource.Idempotent(resource.Func(func(ctx context.Context) error {
				cancel()
				return computation.Release(ctx)
			}))
		}
		observationResource := observer(ctx, result.Value)
		return resource.Idempotent(resource.Func(func(ctx context.Context) error {
			cancel()
			return resource.Sequential(observationResource, resource.Func(computation.Release)).Release(ctx)
		}))
	}

	// Asynchronous branch.
	obsGroup := resource.NewGroup(resource.ModeSequential)
	var mu sync.Mutex
	released := false
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case res, ok := <-pending:
			if !ok {
				return
			}
			if res.Err != nil {
				e.logf("effect: maker failed asynchronously: %v", res.Err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if released {
				return
			}
			r := observer(ctx, res.Value)
			obsGroup.Add(ctx, r)
		case <-abortCtx.Done():
			return
		}
	}()

	return resource.Idempotent(resource.Func(func(ctx context.Context) error {
		cancel() // abort signal, tell the maker to stop
		mu.Lock()
		released = true
		mu.Unlock()
		wg.Wait() // let an in-flight publication land (or not) before we tear down
		return resource.Sequential(
			resource.Func(computation.Release),
			resource.Func(obsGroup.Release),
		).Release(ctx)
	}))
}
