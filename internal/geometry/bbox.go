package geometry

import "fmt"

// BoundingBox is the smallest axis-aligned rectangle containing a geometry.
// It is always derived from a ring, never stored as the source of truth.
type BoundingBox struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

// Bounds computes the bounding box of a ring. Rings are validated before
// they reach this point, so an empty ring is a programmer error.
func Bounds(ring Ring) BoundingBox {
	if len(ring) == 0 {
		panic("geometry: Bounds of empty ring")
	}
	b := BoundingBox{
		MinX: ring[0][0], MinY: ring[0][1],
		MaxX: ring[0][0], MaxY: ring[0][1],
	}
	for _, v := range ring[1:] {
		if v[0] < b.MinX {
			b.MinX = v[0]
		}
		if v[0] > b.MaxX {
			b.MaxX = v[0]
		}
		if v[1] < b.MinY {
			b.MinY = v[1]
		}
		if v[1] > b.MaxY {
			b.MaxY = v[1]
		}
	}
	return b
}

// Valid reports whether min <= max on both axes.
func (b BoundingBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Overlaps reports whether two boxes share any point: not fully disjoint on
// either axis. Touching edges count as overlap.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether o lies entirely within b, borders included.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return b.MinX <= o.MinX && o.MaxX <= b.MaxX &&
		b.MinY <= o.MinY && o.MaxY <= b.MaxY
}

// ContainsPoint reports whether the point (x, y) lies within b, borders
// included.
func (b BoundingBox) ContainsPoint(x, y float64) bool {
	return b.MinX <= x && x <= b.MaxX && b.MinY <= y && y <= b.MaxY
}

// Corners returns the four corner points of the box.
func (b BoundingBox) Corners() [4][2]float64 {
	return [4][2]float64{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// IntersectsRect reports whether the polygon described by ring shares any
// point with the rectangle. The bbox-overlap test used by the spatial index
// is necessary but not sufficient: a concave polygon's bbox can overlap a
// rectangle the polygon itself misses, so this re-tests the true geometry.
func IntersectsRect(ring Ring, box BoundingBox) bool {
	open := ring.Vertices()

	for _, v := range open {
		if box.ContainsPoint(v[0], v[1]) {
			return true
		}
	}

	// Rectangle fully inside the polygon.
	for _, c := range box.Corners() {
		if pointInPolygon(open, c) {
			return true
		}
	}

	corners := box.Corners()
	n := len(open)
	for i := 0; i < n; i++ {
		a1, a2 := open[i], open[(i+1)%n]
		for j := 0; j < 4; j++ {
			b1, b2 := corners[j], corners[(j+1)%4]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// ContainedInRect reports whether the polygon lies entirely within the
// rectangle, borders included.
func ContainedInRect(ring Ring, box BoundingBox) bool {
	for _, v := range ring.Vertices() {
		if !box.ContainsPoint(v[0], v[1]) {
			return false
		}
	}
	return true
}

// pointInPolygon tests point containment with an even-odd ray cast over an
// open vertex list. Points exactly on the boundary may land on either side;
// IntersectsRect covers boundary contact through its vertex and edge tests.
func pointInPolygon(open Ring, p [2]float64) bool {
	inside := false
	n := len(open)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := open[i], open[j]
		if (vi[1] > p[1]) != (vj[1] > p[1]) &&
			p[0] < (vj[0]-vi[0])*(p[1]-vi[1])/(vj[1]-vi[1])+vi[0] {
			inside = !inside
		}
	}
	return inside
}
