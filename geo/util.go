package geo

import (
	"fmt"

	venise_geo "github.com/dernise/venise/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// OriginMode selects which point of a boundary is sent to the
// isochrone provider.
type OriginMode string

const (
	// centroid when it falls inside the shape, otherwise the pole of
	// inaccessibility of the (largest) polygon.
	OriginLabel    OriginMode = "label"
	OriginCentroid OriginMode = "centroid"
)

func ParseOriginMode(s string) (OriginMode, error) {
	switch mode := OriginMode(s); mode {
	case "":
		return OriginLabel, nil
	case OriginLabel, OriginCentroid:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown origin mode '%s' (want '%s' or '%s')", s, OriginLabel, OriginCentroid)
	}
}

func GeometrySupported(geometry orb.Geometry) bool {
	if geometry == nil {
		return false
	}
	switch geometry.GeoJSONType() {
	case "Polygon":
	case "MultiPolygon":
	default:
		return false
	}
	return true
}

// polylabel precision in degrees, about 10cm.
const LABEL_PRECISION = 0.000001

func toVenisePolygon(polygon orb.Polygon) venise_geo.Polygon {
	rings := make([][]venise_geo.Point, len(polygon))
	for idx, ring := range polygon {
		rings[idx] = make([]venise_geo.Point, len(ring))
		for ptIdx, pt := range ring {
			rings[idx][ptIdx] = venise_geo.Point(pt)
		}
	}
	return venise_geo.Polygon{Rings: rings}
}

// GetLargestPolygon returns the member of 'mp' with the largest geodesic
// area, or nil if there are none.
func GetLargestPolygon(mp orb.MultiPolygon) orb.Polygon {
	var largest orb.Polygon
	maxArea := -1.0

	for _, polygon := range mp {
		if area := geo.Area(polygon); area > maxArea {
			largest, maxArea = polygon, area
		}
	}
	return largest
}

// GetPolygonLabelPoint returns the centroid of 'geometry' when it lies
// inside it, and otherwise the pole of inaccessibility of the polygon (or
// the largest polygon of a MultiPolygon).
func GetPolygonLabelPoint(geometry orb.Geometry) orb.Point {
	center, _ := planar.CentroidArea(geometry)

	var polygon orb.Polygon
	switch g := geometry.(type) {
	case orb.Polygon:
		if planar.PolygonContains(g, center) {
			return center
		}
		polygon = g
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(g, center) {
			return center
		}
		polygon = GetLargestPolygon(g)
	}

	if len(polygon) == 0 {
		return center
	}
	return orb.Point(venise_geo.Polylabel(toVenisePolygon(polygon), LABEL_PRECISION, false))
}

func OriginPoint(geometry orb.Geometry, mode OriginMode) orb.Point {
	if mode == OriginCentroid {
		center, _ := planar.CentroidArea(geometry)
		return center
	}
	return GetPolygonLabelPoint(geometry)
}
