// Package index provides the in-process spatial index over footprint
// bounding boxes. The index is a derived, rebuildable cache owned by the
// repository; it answers candidate queries and is never the source of truth
// for geometry.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tbroekhuis/grondplan/internal/geometry"
)

// SpatialIndex maps footprint identifiers to their bounding boxes and
// accelerates bbox overlap queries. Implementations must be safe for
// concurrent use and must tolerate unknown identifiers: Remove of an
// unindexed id is a no-op and Update of one behaves like Insert.
type SpatialIndex interface {
	// Insert adds or replaces the entry for id.
	Insert(id string, box geometry.BoundingBox)

	// Remove drops the entry for id, if present.
	Remove(id string)

	// Update replaces the entry for id, inserting if absent.
	Update(id string, box geometry.BoundingBox)

	// QueryCandidates returns every indexed id whose bounding box overlaps
	// the query box. The result is a superset of true geometric hits; exact
	// filtering happens in the repository. Ids are returned sorted.
	QueryCandidates(box geometry.BoundingBox) []string

	// Len returns the number of indexed entries.
	Len() int
}

// Index kinds selectable through configuration.
const (
	KindLinear = "linear"
	KindRTree  = "rtree"
)

// New constructs a spatial index of the given kind.
func New(kind string) (SpatialIndex, error) {
	switch kind {
	case KindLinear:
		return NewLinear(), nil
	case KindRTree:
		return NewRTree(), nil
	default:
		return nil, fmt.Errorf("unknown spatial index kind %q", kind)
	}
}

// Linear is the minimal index implementation: a map scanned in full on
// every query. Adequate for small and medium record counts.
type Linear struct {
	mu    sync.RWMutex
	boxes map[string]geometry.BoundingBox
}

// NewLinear creates an empty linear-scan index.
func NewLinear() *Linear {
	return &Linear{boxes: make(map[string]geometry.BoundingBox)}
}

func (l *Linear) Insert(id string, box geometry.BoundingBox) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boxes[id] = box
}

func (l *Linear) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.boxes, id)
}

func (l *Linear) Update(id string, box geometry.BoundingBox) {
	l.Insert(id, box)
}

func (l *Linear) QueryCandidates(box geometry.BoundingBox) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ids []string
	for id, stored := range l.boxes {
		if stored.Overlaps(box) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (l *Linear) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.boxes)
}
