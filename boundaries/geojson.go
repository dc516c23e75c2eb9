package boundaries

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/models"
)

func propertyString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func (loader *Loader) loadGeoJSON(ctx context.Context) ([]*models.Boundary, error) {
	data, err := os.ReadFile(loader.filename)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a GeoJSON FeatureCollection: %w", loader.filename, err)
	}

	boundaries := make([]*models.Boundary, 0, len(fc.Features))

	for row, feature := range fc.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if feature.Geometry == nil {
			loader.logger.Warnf("Boundaries: skipping feature %d: no geometry", row)
			continue
		}

		if !geo.GeometrySupported(feature.Geometry) {
			return nil, fmt.Errorf("feature %d: unsupported geometry %s", row, feature.Geometry.GeoJSONType())
		}

		attributes := make(map[string]string, len(feature.Properties))
		for k, v := range feature.Properties {
			attributes[k] = propertyString(v)
		}

		id, ok := attributes[loader.idColumn]
		if !ok {
			return nil, fmt.Errorf("feature %d has no '%s' property", row, loader.idColumn)
		}
		if id == "" {
			return nil, fmt.Errorf("feature %d has an empty '%s'", row, loader.idColumn)
		}

		boundaries = append(boundaries, &models.Boundary{
			Index:      len(boundaries),
			Id:         id,
			Attributes: attributes,
			Geometry:   feature.Geometry,
		})
	}

	return boundaries, nil
}
