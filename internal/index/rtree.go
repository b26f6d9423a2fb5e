package index

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/tbroekhuis/grondplan/internal/geometry"
)

// R-tree node fan-out bounds.
const (
	rtreeMinChildren = 8
	rtreeMaxChildren = 32
)

// rectEpsilon widens degenerate (zero-extent) boxes: rtreego requires
// strictly positive rectangle lengths. Widening only grows the candidate
// set, which the exact filter above the index tolerates.
const rectEpsilon = 1e-9

// entry pairs an id with its indexed rectangle. Deletion from the tree needs
// the same object that was inserted, so entries are kept in a side map.
type entry struct {
	id   string
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// RTree backs the index interface with an R-tree, keeping candidate
// retrieval sub-linear as record counts grow.
type RTree struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	entries map[string]*entry
}

// NewRTree creates an empty R-tree index.
func NewRTree() *RTree {
	return &RTree{
		tree:    rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren),
		entries: make(map[string]*entry),
	}
}

func (r *RTree) Insert(id string, box geometry.BoundingBox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(id, box)
}

func (r *RTree) insertLocked(id string, box geometry.BoundingBox) {
	if old, ok := r.entries[id]; ok {
		r.tree.Delete(old)
	}
	e := &entry{id: id, rect: toRect(box)}
	r.tree.Insert(e)
	r.entries[id] = e
}

func (r *RTree) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		r.tree.Delete(e)
		delete(r.entries, id)
	}
}

func (r *RTree) Update(id string, box geometry.BoundingBox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(id, box)
}

func (r *RTree) QueryCandidates(box geometry.BoundingBox) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.tree.SearchIntersect(toRect(box))
	ids := make([]string, 0, len(results))
	for _, s := range results {
		ids = append(ids, s.(*entry).id)
	}
	sort.Strings(ids)
	return ids
}

func (r *RTree) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// toRect converts a bounding box into an rtreego rectangle, widening
// zero-extent axes just enough to satisfy the positive-length requirement.
func toRect(box geometry.BoundingBox) rtreego.Rect {
	width := box.MaxX - box.MinX
	if width < rectEpsilon {
		width = rectEpsilon
	}
	height := box.MaxY - box.MinY
	if height < rectEpsilon {
		height = rectEpsilon
	}

	rect, err := rtreego.NewRect(rtreego.Point{box.MinX, box.MinY}, []float64{width, height})
	if err != nil {
		// Unreachable: lengths are clamped positive above.
		panic(err)
	}
	return rect
}
