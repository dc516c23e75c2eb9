package outputs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"github.com/UnownHash/isochroner/db_store"
	"github.com/UnownHash/isochroner/models"
)

type IsochroneStore interface {
	InsertOrUpdateIsochrone(context.Context, *db_store.Isochrone) error
}

type IsochroneReader interface {
	GetIsochronesForDuration(ctx context.Context, durationMinutes int, profile string) ([]*db_store.Isochrone, error)
}

var _ IsochroneStore = (*db_store.IsochronesDBStore)(nil)
var _ IsochroneReader = (*db_store.IsochronesDBStore)(nil)

var _ Writer = (*DBWriter)(nil)

type DBWriter struct {
	logger *logrus.Logger
	store  IsochroneStore
}

func (*DBWriter) WriterName() string {
	return "db"
}

func dbIsochroneFromRow(keepColumns []string, row *models.Isochrone, nowEpoch int64) (*db_store.Isochrone, error) {
	polygon, err := json.Marshal(geojson.NewGeometry(row.Geometry))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to geojson.Geometry: %w", err)
	}

	var keepValues null.String

	if len(keepColumns) > 0 {
		keys := make(map[string]string, len(keepColumns))
		for idx, col := range keepColumns {
			if idx < len(row.Keys) {
				keys[col] = row.Keys[idx]
			}
		}
		keysJSON, err := json.Marshal(keys)
		if err != nil {
			return nil, err
		}
		keepValues = null.StringFrom(string(keysJSON))
	}

	return &db_store.Isochrone{
		BoundaryId:      row.BoundaryId,
		DurationMinutes: row.DurationMinutes,
		Profile:         row.Profile,
		KeepValues:      keepValues,
		Lat:             row.Origin.Lat(),
		Lon:             row.Origin.Lon(),
		Polygon:         polygon,
		M2:              null.FloatFrom(geo.Area(row.Geometry)),
		Updated:         null.IntFrom(nowEpoch),
	}, nil
}

func (writer *DBWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	nowEpoch := time.Now().Unix()

	for _, row := range rows {
		iso, err := dbIsochroneFromRow(keepColumns, row, nowEpoch)
		if err != nil {
			return fmt.Errorf("row for '%s': %w", row.BoundaryId, err)
		}

		if err := writer.store.InsertOrUpdateIsochrone(ctx, iso); err != nil {
			return fmt.Errorf("failed to insert/update isochrone for '%s': %w", row.BoundaryId, err)
		}
	}

	writer.logger.Infof("DBWriter: stored %d isochrone(s)", len(rows))
	return nil
}

func NewDBWriter(logger *logrus.Logger, store IsochroneStore) *DBWriter {
	return &DBWriter{
		logger: logger,
		store:  store,
	}
}

func rowFromDBIsochrone(keepColumns []string, keys map[string]string, iso *db_store.Isochrone) (*models.Isochrone, error) {
	geometry, err := iso.Geometry()
	if err != nil {
		return nil, fmt.Errorf("bad polygon: %w", err)
	}
	if geometry.Geometry() == nil {
		return nil, errors.New("null polygon")
	}

	row := &models.Isochrone{
		BoundaryId:      iso.BoundaryId,
		Keys:            make([]string, len(keepColumns)),
		DurationMinutes: iso.DurationMinutes,
		Profile:         iso.Profile,
		Origin:          orb.Point{iso.Lon, iso.Lat},
		Geometry:        geometry.Geometry(),
	}

	for idx, col := range keepColumns {
		value, ok := keys[col]
		if !ok {
			return nil, fmt.Errorf("no stored value for column '%s'", col)
		}
		row.Keys[idx] = value
	}

	return row, nil
}

// ReadDB loads the stored isochrones for a duration and profile. With no
// keep columns given, the first row's stored columns are used, sorted.
func ReadDB(ctx context.Context, reader IsochroneReader, keepColumns []string, durationMinutes int, profile string) ([]string, []*models.Isochrone, error) {
	isochrones, err := reader.GetIsochronesForDuration(ctx, durationMinutes, profile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query isochrones: %w", err)
	}

	rows := make([]*models.Isochrone, 0, len(isochrones))

	for idx, iso := range isochrones {
		keys, err := iso.Keys()
		if err != nil {
			return nil, nil, fmt.Errorf("isochrone for '%s': bad keep_values: %w", iso.BoundaryId, err)
		}

		if idx == 0 && len(keepColumns) == 0 {
			keepColumns = make([]string, 0, len(keys))
			for col := range keys {
				keepColumns = append(keepColumns, col)
			}
			sort.Strings(keepColumns)
		}

		row, err := rowFromDBIsochrone(keepColumns, keys, iso)
		if err != nil {
			return nil, nil, fmt.Errorf("isochrone for '%s': %w", iso.BoundaryId, err)
		}
		rows = append(rows, row)
	}

	return keepColumns, rows, nil
}
