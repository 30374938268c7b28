// Package blueprint implements Blueprint: a Body function that calls Use
// one or more times to pull values out of arbitrary Realms, written as
// if each Use call simply returned its value.
//
// Go has no continuation primitive that lets a function suspend
// mid-body and resume at the same program counter, so a Body is re-run
// from the top whenever it needs a value it doesn't already have.
// Already-resolved values are fed back in from a history so the re-run
// is side-effect-free up to the point where it picks up new work. See
// Use for the exact replay protocol.
package blueprint

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/internal/ctxutil"
	"github.com/yukikurage/signiq/realm"
	"github.com/yukikurage/signiq/resource"
)

// Body is the function a Blueprint wraps. It is called once per replay,
// receiving a ctx that carries the driver state Use and the context
// helpers (Provide/Consume) need to find.
type Body[T any] func(ctx context.Context) T

// chainSuspendSignal is the private panic value Use raises to unwind a
// Body that called Use on a Realm with no value available yet. It never
// crosses a user-visible boundary: runOnce recovers exactly this value
// and nothing else.
type chainSuspend struct{}

var chainSuspendSignal = &chainSuspend{}

var driverKey = ctxutil.NewKey[*driverState]("blueprint.driver")

// driverState is the per-replay bookkeeping Use reads and mutates. It is
// untyped with respect to the Blueprint's own result type T (a single
// Body may call Use at many different value types), so it is stored
// behind one context key regardless of how many distinct T's are
// involved across a program. reenter closes over the Blueprint's actual
// Body/Observer/T, fully erasing them from driverState's own signature.
type driverState struct {
	mu      sync.Mutex
	history []any
	cursor  int
	rcur    *resource.Group

	reenter func(ctx context.Context, history []any) resource.Resource
}

// ToRealm compiles body into a Realm: every Instantiate call starts a
// fresh replay chain rooted at an empty history, publishing one final
// value for every completed run of body (the first completion, plus one
// more for every later re-entry that a suspended Use site's Realm
// eventually resolves).
func ToRealm[T any](body Body[T]) realm.Realm[T] {
	return realm.NewBasicRealm[T](func(ctx context.Context, observer realm.Observer[T]) resource.Resource {
		return runOnce(ctx, body, observer, nil)
	})
}

// runOnce drives exactly one replay of body against history, starting a
// fresh result-collector chain rooted at the Resource it returns. If
// body completes without suspending, the final value is published to
// observer and that publication's Resource becomes the last link in the
// chain. If body suspends (some Use call had no value ready), the chain
// so far is returned as-is, and whichever Use site suspended is
// responsible for resuming it later via driver.reenter.
func runOnce[T any](ctx context.Context, body Body[T], observer realm.Observer[T], history []any) resource.Resource {
	rsync := resource.NewGroup(resource.ModeSequential)
	driver := &driverState{history: history, rcur: rsync}
	driver.reenter = func(ctx context.Context, h []any) resource.Resource {
		return runOnce(ctx, body, observer, h)
	}
	ctx = ctxutil.With(ctx, driverKey, driver)

	func() {
		defer func() {
			if r := recover(); r != nil {
				if r == chainSuspendSignal {
					return
				}
				panic(r)
			}
		}()

		result := body(ctx)

		obsRes := observer(ctx, result)
		driver.mu.Lock()
		rcur := driver.rcur
		driver.mu.Unlock()
		rcur.Add(ctx, obsRes)
	}()

	return rsync
}

// Use pulls a value out of r from within a running Blueprint body. Its
// behavior depends on where this call falls in the driver's replay
// history:
//
//   - If the history already has an entry at the current cursor (this
//     use-site was already resolved on an earlier pass), that entry is
//     returned directly and r is never touched, so a Realm with side
//     effects runs exactly once per use-site, not once per replay.
//   - Otherwise r.Instantiate runs with a tracking observer. If that
//     observer fires before Instantiate returns, the value is appended
//     to history and Use returns it so body keeps running in the same
//     call. If Instantiate returns with nothing delivered yet, Use
//     attaches r's subscription Resource to the result collector and
//     panics with chainSuspendSignal, unwinding this replay.
//   - Any later call to the tracking observer (a second synchronous
//     publication, or any asynchronous one) re-enters: it replays the
//     Blueprint with history truncated to just before this use-site
//     plus the new value, and hands the replay's Resource back to r.
//
// Every value a use-site resolves to gets a composite Resource covering
// everything downstream of it, registered ahead of the use-site's own
// subscription Resource. Releasing the chain therefore tears down
// downstream work before the subscription that produced it, without Use
// ever reversing anything itself.
func Use[T any](ctx context.Context, r realm.Realm[T]) T {
	driver, ok := ctxutil.From(ctx, driverKey)
	if !ok {
		panic(errNotInBlueprint("use"))
	}

	driver.mu.Lock()
	if driver.cursor < len(driver.history) {
		v, _ := driver.history[driver.cursor].(T)
		driver.cursor++
		driver.mu.Unlock()
		return v
	}
	historyPrefix := append([]any(nil), driver.history[:driver.cursor]...)
	oldRcur := driver.rcur
	reenter := driver.reenter
	driver.mu.Unlock()

	var stateMu sync.Mutex
	delivered := false
	windowClosed := false
	var syncValue T
	var rnext *resource.Group

	wrapped := func(obsCtx context.Context, v T) resource.Resource {
		stateMu.Lock()
		if !delivered && !windowClosed {
			delivered = true
			syncValue = v
			rnext = resource.NewGroup(resource.ModeSequential)
			stateMu.Unlock()

			driver.mu.Lock()
			driver.history = append(driver.history, v)
			driver.cursor++
			driver.rcur = rnext
			driver.mu.Unlock()
			return rnext
		}
		stateMu.Unlock()

		extended := append(append([]any(nil), historyPrefix...), v)
		return reenter(obsCtx, extended)
	}

	childRes := r.Instantiate(ctx, wrapped)

	stateMu.Lock()
	windowClosed = true
	wasDelivered := delivered
	value := syncValue
	rn := rnext
	stateMu.Unlock()

	if !wasDelivered {
		oldRcur.Add(ctx, childRes)
		panic(chainSuspendSignal)
	}

	oldRcur.Add(ctx, rn)
	oldRcur.Add(ctx, childRes)
	return value
}
