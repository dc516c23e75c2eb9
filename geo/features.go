package geo

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"
)

type GeofencesFileEntry struct {
	Name   string         `json:"name"`
	Parent string         `json:"parent"`
	Path   orb.LineString `json:"path"`
}

// LoadFeaturesFromFile loads polygon features from a GeoJSON
// FeatureCollection, a geofences file ('[{"name": ..., "path": [[lon, lat], ...]}]')
// or an OSM XML/JSON export.
func LoadFeaturesFromFile(filename string) ([]*geojson.Feature, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".osm", ".xml":
		var osmData osm.OSM
		if err := xml.Unmarshal(data, &osmData); err != nil {
			return nil, fmt.Errorf("'%s' cannot be loaded: bad osm xml: %w", filename, err)
		}
		return featuresFromOSM(&osmData)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("'%s' is empty", filename)
	}

	if trimmed[0] == '[' {
		return loadGeofences(filename, trimmed)
	}

	var probe struct {
		Type     string          `json:"type"`
		Elements json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("'%s' cannot be loaded: bad json: %w", filename, err)
	}

	if probe.Elements != nil {
		var osmData osm.OSM
		if err := json.Unmarshal(trimmed, &osmData); err != nil {
			return nil, fmt.Errorf("'%s' cannot be loaded: bad osm json: %w", filename, err)
		}
		return featuresFromOSM(&osmData)
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(trimmed)
		if err != nil {
			return nil, fmt.Errorf("'%s' cannot be loaded: bad geojson: %w", filename, err)
		}
		return fc.Features, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(trimmed)
		if err != nil {
			return nil, fmt.Errorf("'%s' cannot be loaded: bad geojson: %w", filename, err)
		}
		return []*geojson.Feature{feature}, nil
	}

	return nil, fmt.Errorf("'%s' cannot be loaded: unknown json document type '%s'", filename, probe.Type)
}

func loadGeofences(filename string, data []byte) ([]*geojson.Feature, error) {
	var geofences []GeofencesFileEntry

	if err := json.Unmarshal(data, &geofences); err != nil {
		return nil, fmt.Errorf("'%s' cannot be loaded: bad json: %w", filename, err)
	}

	features := make([]*geojson.Feature, len(geofences))

	for idx, geofence := range geofences {
		if geofence.Name == "" {
			return nil, fmt.Errorf("geofence in '%s' is missing name", filename)
		}

		l := len(geofence.Path)
		if l < 3 {
			return nil, fmt.Errorf("geofence '%s' in '%s' has bad path", geofence.Name, filename)
		}

		if geofence.Path[0] != geofence.Path[l-1] {
			geofence.Path = append(geofence.Path, geofence.Path[0])
		}

		feature := geojson.NewFeature(
			orb.Polygon(
				[]orb.Ring{
					orb.Ring(geofence.Path),
				},
			),
		)
		feature.Properties["name"] = geofence.Name
		if geofence.Parent != "" {
			feature.Properties["parent"] = geofence.Parent
		}
		features[idx] = feature
	}

	return features, nil
}

func featuresFromOSM(osmData *osm.OSM) ([]*geojson.Feature, error) {
	fc, err := osmgeojson.Convert(osmData)
	if err != nil {
		return nil, fmt.Errorf("error converting osm to geojson: %w", err)
	}

	features := make([]*geojson.Feature, 0, len(fc.Features))

	for _, feature := range fc.Features {
		if !GeometrySupported(feature.Geometry) {
			continue
		}
		adjustOSMFeatureProperties(feature)
		features = append(features, feature)
	}

	if len(features) == 0 {
		return nil, errors.New("osm data contains no closed ways or relations")
	}

	return features, nil
}

// adjustOSMFeatureProperties flattens the 'tags' property produced by
// osmgeojson so that 'name' can be looked up like any other feature.
func adjustOSMFeatureProperties(feature *geojson.Feature) {
	props := feature.Properties

	switch tags := props["tags"].(type) {
	case map[string]string:
		for k, v := range tags {
			if _, ok := props[k]; !ok {
				props[k] = v
			}
		}
	case map[string]any:
		for k, v := range tags {
			if _, ok := props[k]; !ok {
				props[k] = v
			}
		}
	}

	// meta is an object and relations an array, neither is useful here.
	delete(props, "meta")
	delete(props, "relations")
	delete(props, "tags")

	if name, _ := props["name"].(string); name == "" {
		switch id := props["id"].(type) {
		case string:
			props["name"] = id
		case int64:
			props["name"] = strconv.FormatInt(id, 10)
		}
	}
}
