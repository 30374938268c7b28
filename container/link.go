// Package container implements the three Realms used as mutable
// reactive state: Store (memoizing fan-out), CellRealm (single mutable
// value) and PortalRealm (externally-driven multi-value set).
package container

import (
	"context"
	"sync"

	"github.com/yukikurage/signiq/resource"
)

// linkMap is a bidirectional index from (value id, observer id) pairs
// to the Resource their pairing owns: given a value id it yields the
// per-observer Resources, and given an observer id it yields the
// per-value Resources. It holds Resources only, never the values or
// observer functions themselves, so it carries no reference cycle
// between data and lifetime.
type linkMap struct {
	mu  sync.Mutex
	byA map[uint64]map[uint64]resource.Resource // value id -> observer id -> Resource
	byB map[uint64]map[uint64]resource.Resource // observer id -> value id -> Resource
}

func newLinkMap() *linkMap {
	return &linkMap{
		byA: make(map[uint64]map[uint64]resource.Resource),
		byB: make(map[uint64]map[uint64]resource.Resource),
	}
}

// link records r as the Resource for the (a, b) pair. If a Resource was
// already linked for that pair, it is released first (synchronously,
// with ctx) before being replaced.
func (l *linkMap) link(ctx context.Context, a, b uint64, r resource.Resource) {
	l.mu.Lock()
	if existing, ok := l.byA[a][b]; ok {
		l.mu.Unlock()
		_ = existing.Release(ctx)
		l.mu.Lock()
	}
	if l.byA[a] == nil {
		l.byA[a] = make(map[uint64]resource.Resource)
	}
	if l.byB[b] == nil {
		l.byB[b] = make(map[uint64]resource.Resource)
	}
	l.byA[a][b] = r
	l.byB[b][a] = r
	l.mu.Unlock()
}

// unlinkAllA releases, in parallel, every Resource linked to value id a,
// and forgets them.
func (l *linkMap) unlinkAllA(ctx context.Context, a uint64) error {
	l.mu.Lock()
	row := l.byA[a]
	delete(l.byA, a)
	resources := make([]resource.Resource, 0, len(row))
	for b, r := range row {
		resources = append(resources, r)
		if l.byB[b] != nil {
			delete(l.byB[b], a)
		}
	}
	l.mu.Unlock()
	return resource.Parallel(resources...).Release(ctx)
}

// unlinkAllB releases, in parallel, every Resource linked to observer id
// b, and forgets them.
func (l *linkMap) unlinkAllB(ctx context.Context, b uint64) error {
	l.mu.Lock()
	col := l.byB[b]
	delete(l.byB, b)
	resources := make([]resource.Resource, 0, len(col))
	for a, r := range col {
		resources = append(resources, r)
		if l.byA[a] != nil {
			delete(l.byA[a], b)
		}
	}
	l.mu.Unlock()
	return resource.Parallel(resources...).Release(ctx)
}

// unlinkAll releases every remaining link in parallel.
func (l *linkMap) unlinkAll(ctx context.Context) error {
	l.mu.Lock()
	resources := make([]resource.Resource, 0)
	for _, row := range l.byA {
		for _, r := range row {
			resources = append(resources, r)
		}
	}
	l.byA = make(map[uint64]map[uint64]resource.Resource)
	l.byB = make(map[uint64]map[uint64]resource.Resource)
	l.mu.Unlock()
	return resource.Parallel(resources...).Release(ctx)
}
