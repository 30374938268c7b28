// Package hooks collects small convenience wrappers over
// blueprint.Use/blueprint.ToRealm for this repository's Realms
// (EffectRealm, CellRealm, Store, PortalRealm) plus a few control-flow
// primitives (UseNever, UseGuard, UseIterable). None of these add new
// semantics: each is Use applied to a specific Realm constructor, named
// so a Body reads as a sequence of operations rather than
// NewXRealm/Use pairs repeated at every call site.
package hooks

import (
	"context"

	"github.com/yukikurage/signiq/blueprint"
	"github.com/yukikurage/signiq/container"
	"github.com/yukikurage/signiq/realm"
	"github.com/yukikurage/signiq/resource"
)

// UseEffect runs maker as a one-shot computation and returns its
// result; it saves the caller from naming the intermediate EffectRealm.
func UseEffect[T any](ctx context.Context, maker realm.Maker[T], opts ...realm.EffectOption[T]) T {
	return blueprint.Use(ctx, realm.NewEffectRealm(maker, opts...))
}

// UseNever suspends the calling Blueprint body at this point forever:
// this use-site's Realm never publishes, so nothing downstream of it
// ever runs unless an earlier use-site re-enters with a different
// history and never reaches this call again.
func UseNever[T any](ctx context.Context) T {
	return blueprint.Use(ctx, realm.Never[T]())
}

// UseGuard suspends the calling body (via UseNever) for as long as cond
// is false. Once a replay recomputes cond as true, execution continues
// immediately.
func UseGuard(ctx context.Context, cond bool) struct{} {
	if cond {
		return struct{}{}
	}
	return UseNever[struct{}](ctx)
}

// UseIterable pulls the next element out of next (an idiomatic Go "ok"
// iterator function) exactly once for this use-site: next is called
// only the first time execution reaches this point, never again on
// history replay. Once next reports no more elements, this use-site
// behaves like UseNever.
func UseIterable[T any](ctx context.Context, next func() (T, bool)) T {
	return blueprint.Use(ctx, realm.Func[T](func(ctx context.Context, observer realm.Observer[T]) resource.Resource {
		v, ok := next()
		if !ok {
			return resource.Noop()
		}
		return observer(ctx, v)
	}))
}

// UseCell reads a CellRealm's current (and every subsequent) value: the
// first call resolves synchronously to whatever the cell holds right
// now, and every later Set/Modify drives an independent re-entrant
// replay of the body from this point on.
func UseCell[T any](ctx context.Context, cell *container.CellRealm[T]) T {
	return blueprint.Use(ctx, cell)
}

// UseStore observes a Store: the first live value resolves synchronously
// (picking an arbitrary one if several already exist), and every other
// live or future value, including ones that arrive after this use-site
// has already resolved once, drives its own independent re-entrant
// replay. A multi-valued Store naturally fans a Blueprint body out into
// one concurrent continuation per value.
func UseStore[T any](ctx context.Context, store *container.Store[T]) T {
	return blueprint.Use(ctx, store)
}

// UsePortal is UseStore applied to the Store half of a PortalRealm pair
// (see container.NewPortalRealm), named so a call site doesn't need to
// know PortalRealm's Store is the same type UseStore already handles.
func UsePortal[T any](ctx context.Context, store *container.Store[T]) T {
	return UseStore(ctx, store)
}

// ToStore instantiates r once, against ctx, and returns the resulting
// Store. It is a thin rename of container.NewStore, kept here so call
// sites that otherwise only import hooks/blueprint don't need a second
// import just to memoize a Realm.
func ToStore[T any](ctx context.Context, r realm.Realm[T], opts ...container.StoreOption[T]) *container.Store[T] {
	return container.NewStore[T](ctx, r, opts...)
}
