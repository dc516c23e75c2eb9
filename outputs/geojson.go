package outputs

import (
	"context"
	"errors"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/models"
)

var _ Writer = (*GeoJSONWriter)(nil)

type GeoJSONWriter struct {
	logger   *logrus.Logger
	filename string
}

func (*GeoJSONWriter) WriterName() string {
	return "geojson"
}

func (writer *GeoJSONWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	fc := geojson.NewFeatureCollection()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		feature := geojson.NewFeature(row.Geometry)
		for idx, col := range keepColumns {
			if idx < len(row.Keys) {
				feature.Properties[col] = row.Keys[idx]
			}
		}
		feature.Properties["duration"] = row.DurationMinutes
		feature.Properties["profile"] = row.Profile
		feature.Properties["lat"] = row.Origin.Lat()
		feature.Properties["lon"] = row.Origin.Lon()
		fc.Append(feature)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}

	err = writeFileReplace(writer.filename, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}

	writer.logger.Infof("GeoJSONWriter: wrote %d feature(s) to '%s'", len(rows), writer.filename)
	return nil
}

func NewGeoJSONWriter(logger *logrus.Logger, filename string) (*GeoJSONWriter, error) {
	if filename == "" {
		return nil, errors.New("no geojson output filename given")
	}
	return &GeoJSONWriter{
		logger:   logger,
		filename: filename,
	}, nil
}
