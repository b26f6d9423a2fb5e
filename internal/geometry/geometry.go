package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors returned by Validate. Callers match them with errors.Is.
var (
	ErrTooFewVertices   = errors.New("ring has fewer than 3 distinct vertices")
	ErrSelfIntersecting = errors.New("ring is self-intersecting")
	ErrZeroArea         = errors.New("ring encloses no area")
)

// areaEpsilon is the minimum shoelace magnitude for a ring to count as
// having enclosed area. Coordinates are planar meters (EPSG:28992), so this
// is far below anything a real building footprint produces.
const areaEpsilon = 1e-9

// Ring is an ordered sequence of [x, y] coordinate pairs describing a
// polygon boundary. A normalized ring is explicitly closed (first and last
// vertex equal) and wound counter-clockwise.
type Ring [][2]float64

// Closed reports whether the ring's last vertex repeats its first.
func (r Ring) Closed() bool {
	return len(r) >= 2 && r[0] == r[len(r)-1]
}

// Vertices returns the ring without its closing duplicate, if present.
func (r Ring) Vertices() Ring {
	if r.Closed() {
		return r[:len(r)-1]
	}
	return r
}

// Equal reports whether two rings have identical vertices in identical order.
func (r Ring) Equal(other Ring) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks that a ring describes a well-formed simple polygon and
// returns its normalized form: consecutive duplicate vertices dropped,
// explicitly closed, wound counter-clockwise. Checks run in order and stop
// at the first failure:
//
//  1. fewer than 3 distinct vertices -> ErrTooFewVertices
//  2. two non-adjacent edges intersect -> ErrSelfIntersecting
//  3. enclosed area below epsilon -> ErrZeroArea
//
// The input ring is never modified.
func Validate(ring Ring) (Ring, error) {
	open := dedupeConsecutive(ring.Vertices())

	distinct := make(map[[2]float64]struct{}, len(open))
	for _, v := range open {
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(distinct))
	}

	if i, j, ok := findSelfIntersection(open); ok {
		return nil, fmt.Errorf("%w: edges %d and %d", ErrSelfIntersecting, i, j)
	}

	area := signedArea(open)
	if math.Abs(area) < areaEpsilon {
		return nil, ErrZeroArea
	}

	// Canonical winding is counter-clockwise (positive signed area). The
	// starting vertex is preserved when reversing.
	if area < 0 {
		reversed := make(Ring, 0, len(open))
		reversed = append(reversed, open[0])
		for i := len(open) - 1; i >= 1; i-- {
			reversed = append(reversed, open[i])
		}
		open = reversed
	}

	closed := make(Ring, 0, len(open)+1)
	closed = append(closed, open...)
	closed = append(closed, open[0])
	return closed, nil
}

// dedupeConsecutive copies the vertex list with runs of identical
// consecutive vertices collapsed, so no zero-length edges survive.
func dedupeConsecutive(open Ring) Ring {
	out := make(Ring, 0, len(open))
	for _, v := range open {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	// The dedupe above does not catch first == last after copying.
	if len(out) >= 2 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// findSelfIntersection reports the first pair of non-adjacent edges that
// intersect. Adjacent edges share an endpoint and are skipped; any other
// contact, including a single touching point, is a violation.
func findSelfIntersection(open Ring) (int, int, bool) {
	n := len(open)
	for i := 0; i < n; i++ {
		a1, a2 := open[i], open[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := open[j], open[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// signedArea computes the shoelace sum over an open vertex list. Positive
// means counter-clockwise winding.
func signedArea(open Ring) float64 {
	var sum float64
	n := len(open)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += open[i][0]*open[j][1] - open[j][0]*open[i][1]
	}
	return sum / 2
}

// Area returns the enclosed area of a ring regardless of winding.
func Area(ring Ring) float64 {
	return math.Abs(signedArea(ring.Vertices()))
}

// cross computes the z component of (b-a) x (c-a).
func cross(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether collinear point p lies on segment [a, b].
func onSegment(a, b, p [2]float64) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// segmentsIntersect reports whether segments [p1, p2] and [q1, q2] share any
// point, endpoints included.
func segmentsIntersect(p1, p2, q1, q2 [2]float64) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
