package outputs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnownHash/isochroner/db_store"
	"github.com/UnownHash/isochroner/models"
)

var testLogger = func() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}()

func testRows() []*models.Isochrone {
	return []*models.Isochrone{
		{
			BoundaryId:      "17031010100",
			Keys:            []string{"17031010100"},
			DurationMinutes: 20,
			Profile:         "mapbox/driving",
			Origin:          orb.Point{-87.5, 41.5},
			Geometry:        orb.Polygon{{{-88, 41}, {-87, 41}, {-87, 42}, {-88, 42}, {-88, 41}}},
		},
		{
			BoundaryId:      "17031010201",
			Keys:            []string{"17031010201"},
			DurationMinutes: 20,
			Profile:         "mapbox/driving",
			Origin:          orb.Point{-87.25, 41.75},
			Geometry:        orb.Polygon{{{-87.5, 41.5}, {-87, 41.5}, {-87, 42}, {-87.5, 41.5}}},
		},
	}
}

func TestCSVWriterHeaderAndRows(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "data", "isochrones.csv")

	writer, err := NewCSVWriter(testLogger, filename)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "GEOID,duration,profile,lat,lon,geometry", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "17031010100,20,mapbox/driving,41.5,-87.5,"), lines[1])
	assert.Contains(t, lines[1], "POLYGON((-88 41,-87 41,-87 42,-88 42,-88 41))")

	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	keepColumns, rows, err := ReadCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{"GEOID"}, keepColumns)
	assert.Equal(t, testRows(), rows)
}

func TestCSVWriterEmptyWritesHeader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "empty.csv")

	writer, err := NewCSVWriter(testLogger, filename)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID", "NAME"}, nil))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "GEOID,NAME,duration,profile,lat,lon,geometry\n", string(data))

	keepColumns, rows, err := ReadCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{"GEOID", "NAME"}, keepColumns)
	assert.Empty(t, rows)
}

func TestCSVWriterOverwrites(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(filename, []byte("old contents\n"), 0644))

	writer, err := NewCSVWriter(testLogger, filename)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()[:1]))

	_, rows, err := ReadCSV(filename)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCSVWriterFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(filename, []byte("old contents\n"), 0644))

	rows := testRows()
	rows[1].Keys = nil

	writer, err := NewCSVWriter(testLogger, filename)
	require.NoError(t, err)
	assert.Error(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, rows))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "old contents\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestCSVWriterUnwritablePath(t *testing.T) {
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, nil, 0644))

	writer, err := NewCSVWriter(testLogger, filepath.Join(notADir, "out.csv"))
	require.NoError(t, err)
	assert.Error(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	_, err = NewCSVWriter(testLogger, "")
	assert.Error(t, err)
}

func TestReadCSVRejectsOtherFiles(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(filename, []byte("a,b,c,d,e,f\n"), 0644))

	_, _, err := ReadCSV(filename)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filename, nil, 0644))
	_, _, err = ReadCSV(filename)
	assert.Error(t, err)
}

func TestGeoJSONWriter(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "isochrones.geojson")

	writer, err := NewGeoJSONWriter(testLogger, filename)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	feature := fc.Features[0]
	assert.Equal(t, "17031010100", feature.Properties.MustString("GEOID"))
	assert.Equal(t, 20, feature.Properties.MustInt("duration"))
	assert.Equal(t, "mapbox/driving", feature.Properties.MustString("profile"))
	assert.Equal(t, testRows()[0].Geometry, feature.Geometry)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestShapefileWriter(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "isochrones.shp")

	writer, err := NewShapefileWriter(testLogger, filename, 4269)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	assert.ElementsMatch(t,
		[]string{"isochrones.shp", "isochrones.shx", "isochrones.dbf", "isochrones.prj"},
		dirNames(t, dir),
	)

	prj, err := os.ReadFile(strings.TrimSuffix(filename, ".shp") + ".prj")
	require.NoError(t, err)
	assert.Contains(t, string(prj), "North_American_1983")

	reader, err := shp.Open(filename)
	require.NoError(t, err)
	defer reader.Close()

	fields := reader.Fields()
	require.Len(t, fields, 5)
	assert.Equal(t, "GEOID", fields[0].String())
	assert.Equal(t, "duration", fields[1].String())

	var ids []string
	for reader.Next() {
		n, shape := reader.Shape()
		_, ok := shape.(*shp.Polygon)
		assert.True(t, ok, "expected polygon, got %T", shape)
		ids = append(ids, reader.ReadAttribute(n, 0))
		assert.Equal(t, "20", reader.ReadAttribute(n, 1))
		assert.Equal(t, "mapbox/driving", reader.ReadAttribute(n, 2))
	}
	assert.Equal(t, []string{"17031010100", "17031010201"}, ids)
}

func TestShapefileWriterFailureKeepsPreviousFiles(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "isochrones.shp")

	writer, err := NewShapefileWriter(testLogger, filename, 4269)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	before := make(map[string][]byte)
	for _, name := range dirNames(t, dir) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = data
	}

	rows := testRows()
	rows[1].Geometry = orb.Point{-87, 41}
	assert.Error(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, rows))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, writer.WriteIsochrones(ctx, []string{"GEOID"}, testRows()), context.Canceled)

	// no temp directory left behind, nothing replaced.
	assert.ElementsMatch(t, []string{"isochrones.shp", "isochrones.shx", "isochrones.dbf", "isochrones.prj"}, dirNames(t, dir))
	for name, data := range before {
		after, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, data, after, name)
	}
}

func TestShapefileWriterRemovesStalePrj(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "isochrones.shp")

	writer, err := NewShapefileWriter(testLogger, filename, 4326)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	writer, err = NewShapefileWriter(testLogger, filename, 0)
	require.NoError(t, err)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()[:1]))

	assert.ElementsMatch(t, []string{"isochrones.shp", "isochrones.shx", "isochrones.dbf"}, dirNames(t, dir))

	reader, err := shp.Open(filename)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "17031010100", reader.ReadAttribute(0, 0))
	assert.Equal(t, 1, reader.AttributeCount())
}

func TestShapefileWriterValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := NewShapefileWriter(testLogger, filepath.Join(dir, "out.csv"), 0)
	assert.Error(t, err)

	_, err = NewShapefileWriter(testLogger, filepath.Join(dir, "out.shp"), 3857)
	assert.Error(t, err)

	writer, err := NewShapefileWriter(testLogger, filepath.Join(dir, "out.shp"), 0)
	require.NoError(t, err)
	err = writer.WriteIsochrones(context.Background(), []string{"TRACT_NAME_LONG"}, testRows())
	assert.Error(t, err)
}

type fakeIsochroneStore struct {
	rows []*db_store.Isochrone
	err  error
}

func (store *fakeIsochroneStore) InsertOrUpdateIsochrone(ctx context.Context, iso *db_store.Isochrone) error {
	if store.err != nil {
		return store.err
	}
	store.rows = append(store.rows, iso)
	return nil
}

func TestDBWriter(t *testing.T) {
	store := &fakeIsochroneStore{}
	writer := NewDBWriter(testLogger, store)

	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))
	require.Len(t, store.rows, 2)

	row := store.rows[0]
	assert.Equal(t, "17031010100", row.BoundaryId)
	assert.Equal(t, 20, row.DurationMinutes)
	assert.Equal(t, 41.5, row.Lat)
	assert.Equal(t, -87.5, row.Lon)
	assert.True(t, row.M2.Valid)
	assert.Greater(t, row.M2.Float64, 0.0)

	var keys map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.KeepValues.String), &keys))
	assert.Equal(t, map[string]string{"GEOID": "17031010100"}, keys)

	geometry, err := row.Geometry()
	require.NoError(t, err)
	assert.Equal(t, testRows()[0].Geometry, geometry.Geometry())
}

func TestMultiWriterStopsOnError(t *testing.T) {
	failing := NewDBWriter(testLogger, &fakeIsochroneStore{err: errors.New("db down")})
	after := &fakeIsochroneStore{}

	var writers MultiWriter
	writers.Append(failing)
	writers.Append(NewDBWriter(testLogger, after))

	err := writers.WriteIsochrones(context.Background(), nil, testRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db writer")
	assert.Empty(t, after.rows)
}

func (store *fakeIsochroneStore) GetIsochronesForDuration(ctx context.Context, durationMinutes int, profile string) ([]*db_store.Isochrone, error) {
	if store.err != nil {
		return nil, store.err
	}
	var isochrones []*db_store.Isochrone
	for _, iso := range store.rows {
		if iso.DurationMinutes == durationMinutes && iso.Profile == profile {
			isochrones = append(isochrones, iso)
		}
	}
	return isochrones, nil
}

func TestReadDB(t *testing.T) {
	store := &fakeIsochroneStore{}
	writer := NewDBWriter(testLogger, store)
	require.NoError(t, writer.WriteIsochrones(context.Background(), []string{"GEOID"}, testRows()))

	keepColumns, rows, err := ReadDB(context.Background(), store, nil, 20, "mapbox/driving")
	require.NoError(t, err)
	assert.Equal(t, []string{"GEOID"}, keepColumns)
	require.Len(t, rows, 2)

	expected := testRows()
	for idx, row := range rows {
		assert.Equal(t, expected[idx].BoundaryId, row.BoundaryId)
		assert.Equal(t, expected[idx].Keys, row.Keys)
		assert.Equal(t, expected[idx].Origin, row.Origin)
		assert.Equal(t, expected[idx].Geometry, row.Geometry)
	}

	_, rows, err = ReadDB(context.Background(), store, nil, 30, "mapbox/driving")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, _, err = ReadDB(context.Background(), store, []string{"NAME"}, 20, "mapbox/driving")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'NAME'")

	_, _, err = ReadDB(context.Background(), &fakeIsochroneStore{err: errors.New("db down")}, nil, 20, "mapbox/driving")
	assert.ErrorContains(t, err, "db down")
}
