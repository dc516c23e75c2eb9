package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var ErrNullShape = errors.New("null shape")

// GeometryFromShape converts a shapefile polygon into an orb Polygon or
// MultiPolygon. Shapefiles store outer rings clockwise and holes
// counter-clockwise; the result uses the GeoJSON convention (outer rings
// counter-clockwise).
func GeometryFromShape(shape shp.Shape) (orb.Geometry, error) {
	var parts []int32
	var points []shp.Point

	switch typedShape := shape.(type) {
	case *shp.Polygon:
		parts, points = typedShape.Parts, typedShape.Points
	case *shp.PolygonZ:
		parts, points = typedShape.Parts, typedShape.Points
	case *shp.PolygonM:
		parts, points = typedShape.Parts, typedShape.Points
	case *shp.Null, nil:
		return nil, ErrNullShape
	default:
		return nil, fmt.Errorf("shape type %T is not supported", shape)
	}

	rings := ringsFromParts(parts, points)
	if len(rings) == 0 {
		return nil, ErrNullShape
	}

	polygons := polygonsFromRings(rings)
	if len(polygons) == 1 {
		return polygons[0], nil
	}
	return orb.MultiPolygon(polygons), nil
}

func ringsFromParts(parts []int32, points []shp.Point) []orb.Ring {
	rings := make([]orb.Ring, 0, len(parts))

	for idx, start := range parts {
		end := int32(len(points))
		if idx+1 < len(parts) {
			end = parts[idx+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 3 {
			continue
		}

		ring := make(orb.Ring, 0, end-start+1)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}

	return rings
}

func polygonsFromRings(rings []orb.Ring) []orb.Polygon {
	var polygons []orb.Polygon

	for _, ring := range rings {
		if ring.Orientation() != orb.CCW || len(polygons) == 0 {
			if ring.Orientation() == orb.CW {
				ring.Reverse()
			}
			polygons = append(polygons, orb.Polygon{ring})
			continue
		}

		// hole. attach it to the outer ring that contains it, falling back
		// to the most recent one.
		ring.Reverse()
		owner := len(polygons) - 1
		for idx, polygon := range polygons {
			if planar.RingContains(polygon[0], ring[0]) {
				owner = idx
				break
			}
		}
		polygons[owner] = append(polygons[owner], ring)
	}

	return polygons
}

func orientedShapePoints(ring orb.Ring, want orb.Orientation) []shp.Point {
	points := make([]shp.Point, len(ring))
	reverse := ring.Orientation() != want

	for idx, pt := range ring {
		if reverse {
			pt = ring[len(ring)-1-idx]
		}
		points[idx] = shp.Point{X: pt[0], Y: pt[1]}
	}

	return points
}

// ShapeFromGeometry converts an orb Polygon or MultiPolygon into a
// shapefile polygon with shapefile ring orientation.
func ShapeFromGeometry(geometry orb.Geometry) (*shp.Polygon, error) {
	var polygons []orb.Polygon

	switch typedGeometry := geometry.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{typedGeometry}
	case orb.MultiPolygon:
		polygons = typedGeometry
	case nil:
		return nil, ErrNullShape
	default:
		return nil, fmt.Errorf("GeoJSONType %s is not supported", geometry.GeoJSONType())
	}

	var parts [][]shp.Point

	for _, polygon := range polygons {
		for ringIdx, ring := range polygon {
			if len(ring) < 3 {
				continue
			}
			if !ring.Closed() {
				ring = append(ring[:len(ring):len(ring)], ring[0])
			}
			want := orb.CCW
			if ringIdx == 0 {
				want = orb.CW
			}
			parts = append(parts, orientedShapePoints(ring, want))
		}
	}

	if len(parts) == 0 {
		return nil, ErrNullShape
	}

	polygon := shp.Polygon(*shp.NewPolyLine(parts))
	return &polygon, nil
}

// CloseShapefile closes 'writer', created with shp.Create(filename, ...),
// and moves its attribute table into place. go-shp's SetFields names it
// "<base>dbf" with no dot, which shp.Open and every other reader miss.
func CloseShapefile(writer *shp.Writer, filename string) error {
	writer.Close()

	base := filename
	if ext := filepath.Ext(filename); strings.EqualFold(ext, ".shp") {
		base = filename[:len(filename)-len(ext)]
	}

	err := os.Rename(base+"dbf", base+".dbf")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to move dbf into place: %w", err)
	}
	return nil
}
