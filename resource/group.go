package resource

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/internal/errwrap"
)

// Mode selects how a Group releases its members.
type Mode int

const (
	// ModeSequential releases members in registration order, each
	// completing before the next begins. Used for Blueprint's
	// result-collector chain, where later work legitimately depends on
	// earlier work having been torn down first.
	ModeSequential Mode = iota
	// ModeParallel releases all members concurrently. Used where
	// members are independent (BasicRealm's live-value set,
	// EffectRealm's computation resources).
	ModeParallel
)

// Group is a mutable, growable collection of Resources that is itself a
// Resource. Members can be added while the group is live and
// individually removed (and released) before the group as a whole is
// released. It is the building block behind Blueprint's per-observation
// result-collector chain (ModeSequential) and every fan-out structure's
// live-child bookkeeping (ModeParallel).
type Group struct {
	mode Mode

	mu       sync.Mutex
	order    []uint64
	items    map[uint64]Resource
	nextID   uint64
	released bool
	err      error
}

// NewGroup creates an empty Group releasing in the given Mode.
func NewGroup(mode Mode) *Group {
	return &Group{
		mode:  mode,
		items: make(map[uint64]Resource),
	}
}

// Add registers r as a member of the group and returns a handle that can
// later be passed to Remove. If the group has already been released, r
// is released immediately (synchronously, with ctx) instead of being
// registered, covering the case where a caller attaches a member after
// teardown has already begun.
func (g *Group) Add(ctx context.Context, r Resource) uint64 {
	if r == nil {
		r = Noop()
	}
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		_ = r.Release(ctx) // best-effort; group is already gone
		return 0
	}
	g.nextID++
	id := g.nextID
	g.items[id] = r
	g.order = append(g.order, id)
	g.mu.Unlock()
	return id
}

// Remove releases the member registered under id and forgets it. A
// zero id, or an id that was already removed, is a no-op. This is what
// lets a BasicRealm tear down one live value without releasing its
// sibling values.
func (g *Group) Remove(ctx context.Context, id uint64) error {
	if id == 0 {
		return nil
	}
	g.mu.Lock()
	r, ok := g.items[id]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	delete(g.items, id)
	g.mu.Unlock()
	return r.Release(ctx)
}

// Len reports the number of currently-registered members.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// Release releases every remaining member (per the group's Mode) and
// marks the group released; members added afterward are released
// immediately by Add instead of being queued. Calling Release more than
// once is a no-op after the first call, replaying its result.
func (g *Group) Release(ctx context.Context) error {
	g.mu.Lock()
	if g.released {
		err := g.err
		g.mu.Unlock()
		return err
	}
	g.released = true
	order := g.order
	items := g.items
	g.order = nil
	g.items = make(map[uint64]Resource)
	g.mu.Unlock()

	members := make([]Resource, 0, len(order))
	for _, id := range order {
		if r, ok := items[id]; ok {
			members = append(members, r)
		}
	}

	var err error
	switch g.mode {
	case ModeParallel:
		err = Parallel(members...).Release(ctx)
	default:
		err = Sequential(members...).Release(ctx)
	}

	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	return err
}

// Drain releases every currently-registered member without marking the
// group released: further Add calls continue to register normally, so
// the group stays open for future members. Nothing in this repository
// calls it.
func (g *Group) Drain(ctx context.Context) error {
	g.mu.Lock()
	order := g.order
	items := g.items
	g.order = nil
	g.items = make(map[uint64]Resource)
	g.mu.Unlock()

	members := make([]Resource, 0, len(order))
	for _, id := range order {
		if r, ok := items[id]; ok {
			members = append(members, r)
		}
	}

	switch g.mode {
	case ModeParallel:
		return errwrap.Wrapf(Parallel(members...).Release(ctx), "drain failed")
	default:
		return errwrap.Wrapf(Sequential(members...).Release(ctx), "drain failed")
	}
}
