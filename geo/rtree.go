package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

type fence[V any] struct {
	geometry orb.Geometry
	value    V
}

func (f *fence[V]) contains(p orb.Point) bool {
	switch g := f.geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// FenceRTree indexes polygon fences by bounding box and answers
// point-in-fence queries. It is not safe for concurrent inserts.
type FenceRTree[V any] struct {
	rtree rtree.RTreeG[*fence[V]]
}

func (rt *FenceRTree[V]) InsertGeometry(geometry orb.Geometry, value V) error {
	if geometry == nil {
		return fmt.Errorf("geometry is missing")
	}
	if !GeometrySupported(geometry) {
		return fmt.Errorf("GeoJSONType %s is not supported", geometry.GeoJSONType())
	}

	bound := geometry.Bound()
	rt.rtree.Insert(bound.Min, bound.Max, &fence[V]{geometry: geometry, value: value})
	return nil
}

func (rt *FenceRTree[V]) InsertFeature(feature *geojson.Feature, value V) error {
	return rt.InsertGeometry(feature.Geometry, value)
}

func (rt *FenceRTree[V]) Len() int {
	return rt.rtree.Len()
}

// search calls fn for every fence containing 'p' until fn returns false.
func (rt *FenceRTree[V]) search(p orb.Point, fn func(V) bool) {
	rt.rtree.Search(p, p, func(_, _ [2]float64, f *fence[V]) bool {
		if f.contains(p) {
			return fn(f.value)
		}
		return true
	})
}

func (rt *FenceRTree[V]) GetMatchesPoint(p orb.Point) []V {
	var matches []V
	rt.search(p, func(v V) bool {
		matches = append(matches, v)
		return true
	})
	return matches
}

func NewFenceRTree[V any]() *FenceRTree[V] {
	return &FenceRTree[V]{}
}
