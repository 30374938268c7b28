// Package resource implements the scoped release handle that every
// Realm observation returns. A Resource is the only thing in this
// repository that ever "goes away": releasing it tears down whatever
// the observation that produced it acquired, and releasing it twice
// must be indistinguishable from releasing it once.
package resource

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/internal/errwrap"
)

// Resource is a scoped release handle. Release must be safe to call any
// number of times: the first call performs the teardown, every later
// call returns the result of the first without doing any further work.
type Resource interface {
	// Release tears down whatever this Resource owns. It blocks until
	// the teardown (and that of every composed child) has completed.
	Release(ctx context.Context) error
}

// Func adapts a plain release function into a Resource. It is the
// building block every other constructor in this package is written in
// terms of.
type Func func(ctx context.Context) error

var _ Resource = Func(nil)

// Release implements Resource.
func (f Func) Release(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// onceResource wraps a Resource so that Release past the first call is
// a no-op that replays the first call's result.
type onceResource struct {
	once sync.Once
	r    Resource
	err  error
}

// Idempotent wraps r so that Release is safe to call repeatedly,
// regardless of whether r itself was already safe to call repeatedly.
// Most constructors in this package already return an idempotent
// Resource; Idempotent exists for wrapping caller-supplied Resources
// (e.g. a Realm's subscribe function) whose repeat-release behavior is
// unknown.
func Idempotent(r Resource) Resource {
	if r == nil {
		return Noop()
	}
	obj := &onceResource{r: r}
	return Func(func(ctx context.Context) error {
		obj.once.Do(func() {
			obj.err = obj.r.Release(ctx)
		})
		return obj.err
	})
}

type noop struct{}

// Release implements Resource. It always succeeds immediately.
func (noop) Release(ctx context.Context) error { return nil }

// Noop returns a Resource whose Release completes immediately with
// success. It is the identity element for Sequential and Parallel.
func Noop() Resource { return noop{} }

// Sequential awaits each item's Release in order: ri completes before
// ri+1 begins. Every item is attempted even if an earlier one failed
// ("continue and surface the first error", see DESIGN.md); the first
// error encountered is returned, with any later ones aggregated onto it
// via internal/errwrap.Append.
func Sequential(items ...Resource) Resource {
	cp := append([]Resource(nil), items...)
	return Func(func(ctx context.Context) error {
		var reterr error
		for _, item := range cp {
			if item == nil {
				continue
			}
			if err := item.Release(ctx); err != nil {
				reterr = errwrap.Append(reterr, err)
			}
		}
		return reterr
	})
}

// Parallel attempts every item's Release concurrently and waits for all
// of them to settle before returning. Errors from every item are
// collected; if any occurred, at least one surfaces (aggregated via
// internal/errwrap.Append).
func Parallel(items ...Resource) Resource {
	cp := append([]Resource(nil), items...)
	return Func(func(ctx context.Context) error {
		var mu sync.Mutex
		var reterr error
		var wg sync.WaitGroup
		for _, item := range cp {
			if item == nil {
				continue
			}
			item := item
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := item.Release(ctx)
				if err == nil {
					return
				}
				mu.Lock()
				reterr = errwrap.Append(reterr, err)
				mu.Unlock()
			}()
		}
		wg.Wait()
		return reterr
	})
}
