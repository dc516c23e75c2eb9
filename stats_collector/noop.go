package stats_collector

import (
	"time"

	"github.com/gin-gonic/gin"
)

var _ StatsCollector = (*noopCollector)(nil)

type noopCollector struct {
}

func (col *noopCollector) Name() string                           { return "no-op" }
func (col *noopCollector) RegisterGinEngine(*gin.Engine)          {}
func (col *noopCollector) WriteTextfile() error                   { return nil }
func (col *noopCollector) AddBatchesProcessed(num uint64)         {}
func (col *noopCollector) AddRecordsRequested(num uint64)         {}
func (col *noopCollector) AddIsochronesReturned(num uint64)       {}
func (col *noopCollector) AddRecordsSkipped(num uint64)           {}
func (col *noopCollector) AddProviderErrors(num uint64)           {}
func (col *noopCollector) ObserveBatchDuration(dur time.Duration) {}

func NewNoopStatsCollector() StatsCollector {
	return &noopCollector{}
}
