package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnownHash/isochroner/boundaries"
	"github.com/UnownHash/isochroner/models"
	"github.com/UnownHash/isochroner/outputs"
	"github.com/UnownHash/isochroner/providers"
	"github.com/UnownHash/isochroner/stats_collector"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func testConfig(batchSize int) Config {
	cfg := GetDefaultConfig()
	cfg.BatchSize = batchSize
	cfg.AccessToken = "pk.test"
	return cfg
}

type fakeSource struct {
	boundaries []*models.Boundary
	err        error
}

func (*fakeSource) SourceName() string { return "fake" }

func (src *fakeSource) LoadBoundaries(context.Context) ([]*models.Boundary, error) {
	return src.boundaries, src.err
}

func makeBoundaries(n int) []*models.Boundary {
	boundaryList := make([]*models.Boundary, n)
	for idx := range boundaryList {
		id := fmt.Sprintf("170310%05d", idx)
		x := float64(idx)
		boundaryList[idx] = &models.Boundary{
			Index:      idx,
			Id:         id,
			Attributes: map[string]string{"GEOID": id, "NAME": fmt.Sprintf("Tract %d", idx)},
			Geometry:   orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}},
		}
	}
	return boundaryList
}

// fakeProvider answers every record unless told otherwise, recording the
// ids of each call.
type fakeProvider struct {
	calls [][]string

	failOnCall int
	skip       map[string]bool
	// applied to the answer of every call.
	mangle func([]*models.Isochrone) []*models.Isochrone
}

func (*fakeProvider) ProviderName() string { return "fake" }

func (provider *fakeProvider) RequestIsochrones(ctx context.Context, req *providers.Request) ([]*models.Isochrone, error) {
	ids := make([]string, len(req.Boundaries))
	for idx, boundary := range req.Boundaries {
		ids[idx] = boundary.Id
	}
	provider.calls = append(provider.calls, ids)

	if req.AccessToken != "pk.test" {
		return nil, errors.New("bad token")
	}
	if provider.failOnCall == len(provider.calls) {
		return nil, errors.New("quota exceeded")
	}

	var rows []*models.Isochrone
	for _, boundary := range req.Boundaries {
		if provider.skip[boundary.Id] {
			continue
		}
		origin := boundary.Geometry.Bound().Center()
		rows = append(rows, &models.Isochrone{
			BoundaryId:      boundary.Id,
			DurationMinutes: req.DurationMinutes,
			Profile:         "fake/driving",
			Origin:          origin,
			Geometry:        orb.Polygon{{{origin[0] - 0.1, origin[1] - 0.1}, {origin[0] + 0.1, origin[1] - 0.1}, {origin[0], origin[1] + 0.1}, {origin[0] - 0.1, origin[1] - 0.1}}},
		})
	}

	if provider.mangle != nil {
		rows = provider.mangle(rows)
	}
	return rows, nil
}

func (provider *fakeProvider) callSizes() []int {
	sizes := make([]int, len(provider.calls))
	for idx, call := range provider.calls {
		sizes[idx] = len(call)
	}
	return sizes
}

type captureWriter struct {
	keepColumns []string
	rows        []*models.Isochrone
	calls       int
}

func (*captureWriter) WriterName() string { return "capture" }

func (writer *captureWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	writer.calls++
	writer.keepColumns = keepColumns
	writer.rows = rows
	return nil
}

func newTestRunner(t *testing.T, cfg Config, source boundaries.Source, provider providers.Provider, writer outputs.Writer) *ExportRunner {
	runner, err := NewExportRunner(testLogger(), cfg, source, provider, writer, nil)
	require.NoError(t, err)
	return runner
}

func TestExportBatchesInOrder(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(7)}
	provider := &fakeProvider{}
	writer := &captureWriter{}

	result, err := newTestRunner(t, testConfig(3), source, provider, writer).Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, provider.callSizes())
	assert.Equal(t, &Result{Records: 7, Batches: 3, Rows: 7}, result)

	require.Equal(t, 1, writer.calls)
	assert.Equal(t, []string{"GEOID"}, writer.keepColumns)
	require.Len(t, writer.rows, 7)
	for idx, row := range writer.rows {
		assert.Equal(t, source.boundaries[idx].Id, row.BoundaryId)
		assert.Equal(t, []string{source.boundaries[idx].Id}, row.Keys)
		assert.Equal(t, DEFAULT_DURATION_MINUTES, row.DurationMinutes)
	}
}

func TestExportNumberOfCalls(t *testing.T) {
	tests := []struct {
		records   int
		batchSize int
		calls     int
	}{
		{records: 0, batchSize: 3, calls: 0},
		{records: 1, batchSize: 3, calls: 1},
		{records: 3, batchSize: 3, calls: 1},
		{records: 4, batchSize: 3, calls: 2},
		{records: 10, batchSize: 1, calls: 10},
		{records: 10, batchSize: 4, calls: 3},
		{records: 5, batchSize: 100, calls: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.records, tt.batchSize), func(t *testing.T) {
			source := &fakeSource{boundaries: makeBoundaries(tt.records)}
			provider := &fakeProvider{}
			writer := &captureWriter{}

			_, err := newTestRunner(t, testConfig(tt.batchSize), source, provider, writer).Export(context.Background())
			require.NoError(t, err)
			assert.Len(t, provider.calls, tt.calls)
			assert.Len(t, writer.rows, tt.records)
			assert.Equal(t, 1, writer.calls)
		})
	}
}

func TestExportBatchLargerThanInput(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(4)}
	provider := &fakeProvider{}

	_, err := newTestRunner(t, testConfig(10), source, provider, &captureWriter{}).Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{4}, provider.callSizes())
}

func TestExportKeepsColumnsAndSkips(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(5)}
	provider := &fakeProvider{skip: map[string]bool{source.boundaries[1].Id: true}}
	writer := &captureWriter{}

	cfg := testConfig(2)
	cfg.KeepColumns = []string{"NAME", "GEOID"}

	runner := newTestRunner(t, cfg, source, provider, writer)
	result, err := runner.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 4, result.Rows)

	require.Len(t, writer.rows, 4)
	assert.Equal(t, []string{"Tract 0", source.boundaries[0].Id}, writer.rows[0].Keys)
	assert.Equal(t, []string{"Tract 2", source.boundaries[2].Id}, writer.rows[1].Keys)

	status := runner.Status()
	assert.Equal(t, "done", status.State)
	assert.Equal(t, uint64(3), status.BatchesDone)
	assert.Equal(t, uint64(1), status.Skipped)
}

func TestExportReordersProviderRows(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(3)}
	provider := &fakeProvider{mangle: func(rows []*models.Isochrone) []*models.Isochrone {
		return []*models.Isochrone{rows[2], rows[0], rows[1]}
	}}
	writer := &captureWriter{}

	_, err := newTestRunner(t, testConfig(3), source, provider, writer).Export(context.Background())
	require.NoError(t, err)
	for idx, row := range writer.rows {
		assert.Equal(t, source.boundaries[idx].Id, row.BoundaryId)
	}
}

func TestExportRejectsBadProviderRows(t *testing.T) {
	tests := map[string]func([]*models.Isochrone) []*models.Isochrone{
		"duplicate": func(rows []*models.Isochrone) []*models.Isochrone {
			return []*models.Isochrone{rows[0], rows[0]}
		},
		"unknown": func(rows []*models.Isochrone) []*models.Isochrone {
			rows[1].BoundaryId = "not-in-batch"
			return rows
		},
		"too many": func(rows []*models.Isochrone) []*models.Isochrone {
			return append(rows, rows...)
		},
	}

	for name, mangle := range tests {
		t.Run(name, func(t *testing.T) {
			source := &fakeSource{boundaries: makeBoundaries(3)}
			writer := &captureWriter{}

			_, err := newTestRunner(t, testConfig(3), source, &fakeProvider{mangle: mangle}, writer).Export(context.Background())
			var providerErr *ProviderError
			require.ErrorAs(t, err, &providerErr)
			assert.Equal(t, 0, providerErr.Batch)
			assert.Equal(t, 0, writer.calls)
		})
	}
}

func TestExportUnreadableInput(t *testing.T) {
	loader, err := boundaries.NewLoader(testLogger(), boundaries.Config{
		Filename: filepath.Join(t.TempDir(), "missing.shp"),
		IdColumn: "GEOID",
	})
	require.NoError(t, err)

	provider := &fakeProvider{}
	writer := &captureWriter{}

	runner := newTestRunner(t, testConfig(3), loader, provider, writer)
	_, err = runner.Export(context.Background())

	var inputErr *InputReadError
	require.ErrorAs(t, err, &inputErr)
	assert.Empty(t, provider.calls)
	assert.Equal(t, 0, writer.calls)
	assert.Equal(t, "failed", runner.Status().State)
}

func TestExportMissingKeepColumn(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(2)}
	provider := &fakeProvider{}

	cfg := testConfig(3)
	cfg.KeepColumns = []string{"GEOID", "TRACTCE"}

	_, err := newTestRunner(t, cfg, source, provider, &captureWriter{}).Export(context.Background())
	var inputErr *InputReadError
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, err.Error(), "TRACTCE")
	assert.Empty(t, provider.calls)
}

func TestExportProviderFailureKeepsOutput(t *testing.T) {
	outFilename := filepath.Join(t.TempDir(), "isochrones.csv")
	require.NoError(t, os.WriteFile(outFilename, []byte("previous run\n"), 0644))

	writer, err := outputs.NewCSVWriter(testLogger(), outFilename)
	require.NoError(t, err)

	source := &fakeSource{boundaries: makeBoundaries(7)}
	provider := &fakeProvider{failOnCall: 2}

	_, err = newTestRunner(t, testConfig(3), source, provider, writer).Export(context.Background())

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 1, providerErr.Batch)
	assert.Equal(t, 3, providerErr.NumBatches)
	assert.Contains(t, err.Error(), "quota exceeded")

	assert.Len(t, provider.calls, 2, "no calls after the failing batch")

	data, err := os.ReadFile(outFilename)
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(data))
}

func TestExportCredentialIsPassed(t *testing.T) {
	source := &fakeSource{boundaries: makeBoundaries(2)}
	provider := &fakeProvider{}

	cfg := testConfig(3)
	cfg.AccessToken = "pk.other"

	_, err := newTestRunner(t, cfg, source, provider, &captureWriter{}).Export(context.Background())
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 0, providerErr.Batch)
}

func TestExportWritesCSV(t *testing.T) {
	outFilename := filepath.Join(t.TempDir(), "data", "isochrones.csv")
	writer, err := outputs.NewCSVWriter(testLogger(), outFilename)
	require.NoError(t, err)

	source := &fakeSource{boundaries: makeBoundaries(7)}

	_, err = newTestRunner(t, testConfig(3), source, &fakeProvider{}, writer).Export(context.Background())
	require.NoError(t, err)

	keepColumns, rows, err := outputs.ReadCSV(outFilename)
	require.NoError(t, err)
	assert.Equal(t, []string{"GEOID"}, keepColumns)
	require.Len(t, rows, 7)

	seen := make(map[string]bool)
	for idx, row := range rows {
		assert.Equal(t, source.boundaries[idx].Id, row.BoundaryId)
		assert.False(t, seen[row.BoundaryId])
		seen[row.BoundaryId] = true
	}
}

func TestExportEmptyInputWritesHeader(t *testing.T) {
	outFilename := filepath.Join(t.TempDir(), "isochrones.csv")
	writer, err := outputs.NewCSVWriter(testLogger(), outFilename)
	require.NoError(t, err)

	provider := &fakeProvider{}
	result, err := newTestRunner(t, testConfig(3), &fakeSource{}, provider, writer).Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Empty(t, provider.calls)

	data, err := os.ReadFile(outFilename)
	require.NoError(t, err)
	assert.Equal(t, "GEOID,duration,profile,lat,lon,geometry\n", string(data))
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{}
	writer := &captureWriter{}

	_, err := newTestRunner(t, testConfig(3), &fakeSource{boundaries: makeBoundaries(3)}, provider, writer).Export(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.calls)
	assert.Equal(t, 0, writer.calls)
}

func TestExportStats(t *testing.T) {
	promConfig := stats_collector.GetDefaultPrometheusConfig()
	promConfig.Enabled = true
	promConfig.Textfile = filepath.Join(t.TempDir(), "isochroner.prom")
	statsCollector := stats_collector.NewPrometheusCollector(promConfig)

	runner, err := NewExportRunner(testLogger(), testConfig(3), &fakeSource{boundaries: makeBoundaries(7)}, &fakeProvider{}, &captureWriter{}, statsCollector)
	require.NoError(t, err)
	_, err = runner.Export(context.Background())
	require.NoError(t, err)

	require.NoError(t, statsCollector.WriteTextfile())
	data, err := os.ReadFile(promConfig.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "isochroner_batches_processed 3")
	assert.Contains(t, string(data), "isochroner_records_requested 7")
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(3)
	require.NoError(t, cfg.Validate())

	bad := []func(*Config){
		func(cfg *Config) { cfg.BatchSize = 0 },
		func(cfg *Config) { cfg.DurationMinutes = 0 },
		func(cfg *Config) { cfg.DurationMinutes = 61 },
		func(cfg *Config) { cfg.AccessToken = "" },
		func(cfg *Config) { cfg.KeepColumns = []string{"GEOID", "GEOID"} },
		func(cfg *Config) { cfg.KeepColumns = []string{""} },
	}
	for idx, mod := range bad {
		cfg := testConfig(3)
		mod(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", idx)
	}

	_, err := NewExportRunner(testLogger(), Config{}, &fakeSource{}, &fakeProvider{}, &captureWriter{}, nil)
	assert.Error(t, err)
}
