package container

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/realm"
	"github.com/yukikurage/signiq/resource"
)

// cellInstance is the per-observation state a CellRealm keeps: the
// observer it was given, the Resource currently standing in for the
// cell's value as seen by that observer, and a wait group tracking any
// release of a previous Resource still in flight.
type cellInstance[T any] struct {
	ctx      context.Context
	observer realm.Observer[T]

	mu      sync.Mutex
	current resource.Resource
	pending sync.WaitGroup

	releaseOnce sync.Once
	releaseErr  error
}

// release tears this instance's current Resource down exactly once,
// whether it is reached via the Resource returned from Instantiate or
// via the owning CellRealm's own Release. Both call this so a
// concurrent race between the two never releases current twice.
func (inst *cellInstance[T]) release(ctx context.Context) error {
	inst.releaseOnce.Do(func() {
		inst.pending.Wait()
		inst.mu.Lock()
		cur := inst.current
		inst.mu.Unlock()
		inst.releaseErr = cur.Release(ctx)
	})
	return inst.releaseErr
}

// CellRealm is a single-value mutable Realm. Each Instantiate call
// starts an independent observation; Set/Modify updates every live
// observation's Resource in place. The new observer call happens before
// the old Resource's release is even started, and that release is
// never awaited by Set.
type CellRealm[T any] struct {
	equal func(a, b T) bool

	mu        sync.Mutex
	value     T
	releasing bool
	instances map[uint64]*cellInstance[T]
	nextID    uint64

	releaseOnce sync.Once
	releaseErr  error
}

var _ realm.Realm[int] = (*CellRealm[int])(nil)
var _ resource.Resource = (*CellRealm[int])(nil)

// NewCellRealm creates a cell holding initial, using == for
// deduplication. T must be comparable; use NewCellRealmWithEqual for
// structural types (slices, maps) that are not.
func NewCellRealm[T comparable](initial T) *CellRealm[T] {
	return NewCellRealmWithEqual(initial, func(a, b T) bool { return a == b })
}

// NewCellRealmWithEqual creates a cell with a caller-supplied equality
// function, for structural types that aren't Go-comparable (slices,
// maps).
func NewCellRealmWithEqual[T any](initial T, equal func(a, b T) bool) *CellRealm[T] {
	return &CellRealm[T]{
		value:     initial,
		equal:     equal,
		instances: make(map[uint64]*cellInstance[T]),
	}
}

// Peek returns the current value.
func (c *CellRealm[T]) Peek() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Instantiate implements realm.Realm. It invokes obs synchronously with
// the current value and returns a Resource that, on release, awaits
// any in-flight release of prior sub-Resources before releasing the
// current one.
func (c *CellRealm[T]) Instantiate(ctx context.Context, obs realm.Observer[T]) resource.Resource {
	c.mu.Lock()
	id := c.nextID + 1
	c.nextID = id
	v := c.value
	c.mu.Unlock()

	r := obs(ctx, v)
	inst := &cellInstance[T]{ctx: ctx, observer: obs, current: r}

	c.mu.Lock()
	c.instances[id] = inst
	c.mu.Unlock()

	return resource.Func(func(ctx context.Context) error {
		c.mu.Lock()
		delete(c.instances, id)
		c.mu.Unlock()
		return inst.release(ctx)
	})
}

// Set replaces the cell's value. A value structurally equal to the
// current one is a no-op. Otherwise, every live instance's observer is
// invoked with the new value before that instance's previous Resource
// release is started (and that release is not awaited here).
func (c *CellRealm[T]) Set(v T) {
	c.mu.Lock()
	if c.releasing {
		c.mu.Unlock()
		return
	}
	if c.equal(v, c.value) {
		c.mu.Unlock()
		return
	}
	c.value = v
	instances := make([]*cellInstance[T], 0, len(c.instances))
	for _, inst := range c.instances {
		instances = append(instances, inst)
	}
	c.mu.Unlock()

	for _, inst := range instances {
		inst := inst
		inst.mu.Lock()
		rnext := inst.observer(inst.ctx, v)
		rprev := inst.current
		inst.current = rnext
		inst.pending.Add(1)
		inst.mu.Unlock()
		go func() {
			defer inst.pending.Done()
			_ = rprev.Release(inst.ctx)
		}()
	}
}

// Modify replaces the cell's value with f(Peek()). It has the same
// deduplication and ordering behavior as Set.
func (c *CellRealm[T]) Modify(f func(T) T) {
	c.Set(f(c.Peek()))
}

// Release marks the cell as releasing (so further Set/Modify calls are
// no-ops), awaits every instance's pending releases, then releases
// each instance's current Resource. Release is idempotent.
func (c *CellRealm[T]) Release(ctx context.Context) error {
	c.releaseOnce.Do(func() {
		c.mu.Lock()
		c.releasing = true
		instances := make([]*cellInstance[T], 0, len(c.instances))
		for _, inst := range c.instances {
			instances = append(instances, inst)
		}
		c.instances = make(map[uint64]*cellInstance[T])
		c.mu.Unlock()

		resources := make([]resource.Resource, 0, len(instances))
		for _, inst := range instances {
			inst := inst
			resources = append(resources, resource.Func(inst.release))
		}
		c.releaseErr = resource.Parallel(resources...).Release(ctx)
	})
	return c.releaseErr
}
