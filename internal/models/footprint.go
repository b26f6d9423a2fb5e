package models

import (
	"time"

	"github.com/tbroekhuis/grondplan/internal/geometry"
)

// Footprint is a building's 2D ground-plan polygon plus descriptive
// attributes. The identifier is assigned on creation and immutable; the
// ring is always stored in normalized form (explicitly closed,
// counter-clockwise, EPSG:28992 coordinates).
type Footprint struct {
	ID         string        `json:"id"`
	Ring       geometry.Ring `json:"ring"`
	Attributes Attributes    `json:"attributes"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Bounds returns the footprint's bounding box, recomputed from the ring.
// The box is derived state and never stored authoritatively.
func (f *Footprint) Bounds() geometry.BoundingBox {
	return geometry.Bounds(f.Ring)
}

// Clone returns a deep copy, so stores can hand out footprints without
// sharing mutable slices or maps with callers.
func (f *Footprint) Clone() *Footprint {
	out := *f
	out.Ring = make(geometry.Ring, len(f.Ring))
	copy(out.Ring, f.Ring)
	out.Attributes = f.Attributes.Clone()
	return &out
}
