// Package geo declares the geo-distance query interface SPEC_FULL.md
// reserves a GEO leaf node for, without providing a real implementation —
// the origin's quad-tree indexing is out of scope here (§1 Non-goals).
package geo

import "errors"

// ErrNotImplemented is returned by every Index method; it exists so a
// caller wiring a GEO leaf through the query planner gets an explicit,
// typed failure rather than a panic or a silently-empty result set.
var ErrNotImplemented = errors.New("geo: index not implemented")

// Point is a decimal-degrees coordinate.
type Point struct {
	Lat, Lon float64
}

// Index is the shape a real geo backend would need to satisfy to plug
// into a GEO leaf: nearest-neighbor and radius lookups keyed by internal
// record id.
type Index interface {
	IndexPoint(recordID uint64, p Point) error
	WithinRadius(center Point, meters float64) ([]uint64, error)
	Nearest(center Point, n int) ([]uint64, error)
}

// Stub is a no-op Index satisfying the interface so callers can wire a
// GEO leaf through the planner before a real backend exists.
type Stub struct{}

func (Stub) IndexPoint(uint64, Point) error                { return ErrNotImplemented }
func (Stub) WithinRadius(Point, float64) ([]uint64, error) { return nil, ErrNotImplemented }
func (Stub) Nearest(Point, int) ([]uint64, error)          { return nil, ErrNotImplemented }
