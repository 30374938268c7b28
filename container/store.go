package container

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/internal/errwrap"
	"github.com/yukikurage/signiq/realm"
	"github.com/yukikurage/signiq/resource"
)

// Store is a memoizing Realm: it instantiates its source exactly once,
// in the constructor, and fans that single observation out to however
// many observers later call Instantiate. Every (live value, registered
// observer) pair owns exactly one child Resource, tracked in a
// bidirectional link map so either side can be torn down independently.
//
// Store is both a Realm[T] (observers can Instantiate it) and a
// resource.Resource (the whole thing, source included, can be torn
// down).
type Store[T any] struct {
	logf func(format string, v ...interface{})

	mu             sync.Mutex
	values         map[uint64]T
	valueOrder     []uint64
	nextValueID    uint64
	observers      map[uint64]realm.Observer[T]
	nextObserverID uint64

	links *linkMap

	source resource.Resource

	releaseOnce sync.Once
	releaseErr  error
}

var _ realm.Realm[int] = (*Store[int])(nil)
var _ resource.Resource = (*Store[int])(nil)

// StoreOption configures a Store.
type StoreOption[T any] func(*Store[T])

// WithStoreLogf attaches a Logf-style diagnostic sink.
func WithStoreLogf[T any](logf func(format string, v ...interface{})) StoreOption[T] {
	return func(s *Store[T]) { s.logf = logf }
}

// NewStore instantiates source exactly once and returns a Store that
// fans its values out to every future Instantiate call.
func NewStore[T any](ctx context.Context, source realm.Realm[T], opts ...StoreOption[T]) *Store[T] {
	s := &Store[T]{
		values:    make(map[uint64]T),
		observers: make(map[uint64]realm.Observer[T]),
		links:     newLinkMap(),
		logf:      func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logf == nil {
		s.logf = func(string, ...interface{}) {}
	}
	s.source = source.Instantiate(ctx, s.createFn)
	return s
}

// createFn is passed to the source Realm as its observer. It allocates
// a value entry, links it against every currently-registered observer,
// and returns the Resource that removes it.
func (s *Store[T]) createFn(ctx context.Context, v T) resource.Resource {
	s.mu.Lock()
	id := s.nextValueID + 1
	s.nextValueID = id
	s.values[id] = v
	s.valueOrder = append(s.valueOrder, id)
	observers := make(map[uint64]realm.Observer[T], len(s.observers))
	for oid, obs := range s.observers {
		observers[oid] = obs
	}
	s.mu.Unlock()

	for oid, obs := range observers {
		r := obs(ctx, v)
		s.links.link(ctx, id, oid, r)
	}

	return resource.Func(func(ctx context.Context) error {
		s.mu.Lock()
		delete(s.values, id)
		for i, vid := range s.valueOrder {
			if vid == id {
				s.valueOrder = append(s.valueOrder[:i], s.valueOrder[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		return s.links.unlinkAllA(ctx, id)
	})
}

// Instantiate implements realm.Realm. It registers obs, replays every
// currently-live value through it, and returns a Resource that
// unregisters obs and releases every link keyed on it.
func (s *Store[T]) Instantiate(ctx context.Context, obs realm.Observer[T]) resource.Resource {
	s.mu.Lock()
	oid := s.nextObserverID + 1
	s.nextObserverID = oid
	s.observers[oid] = obs
	values := make(map[uint64]T, len(s.values))
	for id, v := range s.values {
		values[id] = v
	}
	s.mu.Unlock()

	for id, v := range values {
		r := obs(ctx, v)
		s.links.link(ctx, id, oid, r)
	}

	return resource.Func(func(ctx context.Context) error {
		s.mu.Lock()
		delete(s.observers, oid)
		s.mu.Unlock()
		return s.links.unlinkAllB(ctx, oid)
	})
}

// Peek returns a snapshot of the currently-live values. Iteration order
// is unspecified.
func (s *Store[T]) Peek() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.valueOrder))
	for _, id := range s.valueOrder {
		out = append(out, s.values[id])
	}
	return out
}

// Release tears the Store down: the source Resource and the entire
// link map are released in parallel and any errors from either are
// aggregated, then the live value set is emptied. Release is idempotent.
func (s *Store[T]) Release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		var mu sync.Mutex
		var reterr error
		var wg sync.WaitGroup
		run := func(f func(context.Context) error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := f(ctx); err != nil {
					mu.Lock()
					reterr = errwrap.Append(reterr, err)
					mu.Unlock()
				}
			}()
		}
		run(s.source.Release)
		run(s.links.unlinkAll)
		wg.Wait()
		s.mu.Lock()
		s.values = make(map[uint64]T)
		s.valueOrder = nil
		s.mu.Unlock()
		s.releaseErr = reterr
		if s.releaseErr != nil {
			s.logf("store: release finished with error: %v", s.releaseErr)
		}
	})
	return s.releaseErr
}
