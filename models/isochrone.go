package models

import (
	"github.com/paulmach/orb"
)

// Isochrone is one result row: the area reachable from Origin within
// DurationMinutes, along with the retained columns of the boundary it was
// requested for.
type Isochrone struct {
	BoundaryId      string
	Keys            []string
	DurationMinutes int
	Profile         string
	Origin          orb.Point
	Geometry        orb.Geometry
}
