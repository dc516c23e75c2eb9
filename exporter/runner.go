package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/boundaries"
	"github.com/UnownHash/isochroner/models"
	"github.com/UnownHash/isochroner/outputs"
	"github.com/UnownHash/isochroner/providers"
	"github.com/UnownHash/isochroner/stats_collector"
)

// Result summarizes a successful run.
type Result struct {
	Records int
	Batches int
	Rows    int
	Skipped int
}

// ExportRunner loads boundaries, asks the provider for isochrones one
// batch at a time and writes the accumulated rows once every batch has
// succeeded.
type ExportRunner struct {
	logger         *logrus.Logger
	config         Config
	source         boundaries.Source
	provider       providers.Provider
	writer         outputs.Writer
	statsCollector stats_collector.StatsCollector

	progress progress
}

func (runner *ExportRunner) Status() Status {
	return runner.progress.status()
}

func (runner *ExportRunner) Export(ctx context.Context) (*Result, error) {
	runner.progress.start()
	result, err := runner.export(ctx)
	runner.progress.finish(err)
	return result, err
}

func (runner *ExportRunner) checkKeepColumns(boundaryList []*models.Boundary) error {
	for _, boundary := range boundaryList {
		if missing := boundary.MissingColumns(runner.config.KeepColumns); len(missing) > 0 {
			return fmt.Errorf("record %d ('%s') has no column(s): %s", boundary.Index, boundary.Id, strings.Join(missing, ", "))
		}
	}
	return nil
}

func (runner *ExportRunner) export(ctx context.Context) (*Result, error) {
	cfg := &runner.config

	boundaryList, err := runner.source.LoadBoundaries(ctx)
	if err == nil {
		err = runner.checkKeepColumns(boundaryList)
	}
	if err != nil {
		return nil, &InputReadError{Source: runner.source.SourceName(), Err: err}
	}

	batches, err := models.Partition(boundaryList, cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	numBatches := len(batches)
	runner.progress.records.Store(uint64(len(boundaryList)))
	runner.progress.batches.Store(uint64(numBatches))
	runner.progress.setState(STATE_REQUESTING)

	runner.logger.Infof("EXPORTER: %d record(s) in %d batch(es) of up to %d, duration %d minute(s), provider %s",
		len(boundaryList), numBatches, cfg.BatchSize, cfg.DurationMinutes, runner.provider.ProviderName(),
	)

	rows := make([]*models.Isochrone, 0, len(boundaryList))
	skipped := 0

	for batchIdx, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := &providers.Request{
			Boundaries:      batch,
			AccessToken:     cfg.AccessToken,
			DurationMinutes: cfg.DurationMinutes,
		}

		start := time.Now()
		batchRows, err := runner.provider.RequestIsochrones(ctx, req)
		runner.statsCollector.ObserveBatchDuration(time.Since(start))
		if err == nil {
			batchRows, err = orderBatchRows(batch, batchRows, cfg.KeepColumns)
		}
		if err != nil {
			runner.statsCollector.AddProviderErrors(1)
			return nil, &ProviderError{
				Provider:   runner.provider.ProviderName(),
				Batch:      batchIdx,
				NumBatches: numBatches,
				Err:        err,
			}
		}

		numSkipped := len(batch) - len(batchRows)
		skipped += numSkipped
		rows = append(rows, batchRows...)

		runner.statsCollector.AddBatchesProcessed(1)
		runner.statsCollector.AddRecordsRequested(uint64(len(batch)))
		runner.statsCollector.AddIsochronesReturned(uint64(len(batchRows)))
		runner.statsCollector.AddRecordsSkipped(uint64(numSkipped))

		runner.progress.batchesDone.Add(1)
		runner.progress.rows.Add(uint64(len(batchRows)))
		runner.progress.skipped.Add(uint64(numSkipped))

		runner.logger.Debugf("EXPORTER: batch %d/%d: %d isochrone(s), %d skipped (took %s)",
			batchIdx+1, numBatches, len(batchRows), numSkipped, time.Since(start).Truncate(time.Millisecond),
		)
	}

	runner.progress.setState(STATE_WRITING)

	if err := runner.writer.WriteIsochrones(ctx, cfg.KeepColumns, rows); err != nil {
		return nil, &OutputWriteError{Writer: runner.writer.WriterName(), Err: err}
	}

	result := &Result{
		Records: len(boundaryList),
		Batches: numBatches,
		Rows:    len(rows),
		Skipped: skipped,
	}

	runner.logger.Infof("EXPORTER: done: %d record(s), %d batch(es), %d isochrone(s), %d skipped",
		result.Records, result.Batches, result.Rows, result.Skipped,
	)

	return result, nil
}

// orderBatchRows puts the provider's rows into batch order and fills in
// the kept column values. Rows must name boundaries of this batch, at
// most once each.
func orderBatchRows(batch []*models.Boundary, rows []*models.Isochrone, keepColumns []string) ([]*models.Isochrone, error) {
	if len(rows) > len(batch) {
		return nil, fmt.Errorf("got %d row(s) for %d record(s)", len(rows), len(batch))
	}

	positions := make(map[string]int, len(batch))
	for idx, boundary := range batch {
		positions[boundary.Id] = idx
	}

	slots := make([]*models.Isochrone, len(batch))
	for _, row := range rows {
		if row == nil {
			return nil, errors.New("got a nil row")
		}
		pos, ok := positions[row.BoundaryId]
		if !ok {
			return nil, fmt.Errorf("got a row for '%s', which is not part of the batch", row.BoundaryId)
		}
		if slots[pos] != nil {
			return nil, fmt.Errorf("got more than one row for '%s'", row.BoundaryId)
		}
		row.Keys = batch[pos].KeepValues(keepColumns)
		slots[pos] = row
	}

	ordered := slots[:0]
	for _, row := range slots {
		if row != nil {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func NewExportRunner(logger *logrus.Logger, config Config, source boundaries.Source, provider providers.Provider, writer outputs.Writer, statsCollector stats_collector.StatsCollector) (*ExportRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if statsCollector == nil {
		statsCollector = stats_collector.NewNoopStatsCollector()
	}

	return &ExportRunner{
		logger:         logger,
		config:         config,
		source:         source,
		provider:       provider,
		writer:         writer,
		statsCollector: statsCollector,
	}, nil
}
