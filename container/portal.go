package container

import (
	"context"

	"github.com/yukikurage/signiq/realm"
	"github.com/yukikurage/signiq/resource"
)

// portalSource is the internal Realm a PortalRealm's Store is built on.
// It never publishes on its own; it exists purely to capture the
// Store's createFn (handed to it as the observer argument of
// Instantiate) so that the externally-exposed setter can call it
// directly to add values. Its own Instantiate is called exactly once,
// synchronously, by Store's constructor.
type portalSource[T any] struct {
	add realm.Observer[T]
}

func (p *portalSource[T]) Instantiate(ctx context.Context, observer realm.Observer[T]) resource.Resource {
	p.add = observer
	return resource.Noop()
}

// Setter adds a value to a PortalRealm's Store for as long as the
// Realm[struct{}] it returns stays instantiated: instantiating it adds
// the value, releasing that instantiation removes it.
type Setter[T any] func(v T) realm.Realm[struct{}]

// NewPortalRealm builds a multi-value Realm driven entirely by an
// externally-callable setter. It returns the fan-out Store (for reading
// and observing current values) and the setter itself.
func NewPortalRealm[T any](opts ...StoreOption[T]) (*Store[T], Setter[T]) {
	src := &portalSource[T]{}
	store := NewStore[T](context.Background(), src, opts...)

	setter := func(v T) realm.Realm[struct{}] {
		return realm.Func[struct{}](func(ctx context.Context, observer realm.Observer[struct{}]) resource.Resource {
			addRes := src.add(ctx, v)
			obsRes := observer(ctx, struct{}{})
			return resource.Sequential(obsRes, addRes)
		})
	}

	return store, setter
}
