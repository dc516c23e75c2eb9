package stats_collector

import (
	"time"

	"github.com/gin-gonic/gin"
)

type StatsCollector interface {
	Name() string
	RegisterGinEngine(*gin.Engine)
	// WriteTextfile dumps the current metrics for node_exporter's
	// textfile collector, if configured.
	WriteTextfile() error

	AddBatchesProcessed(num uint64)
	AddRecordsRequested(num uint64)
	AddIsochronesReturned(num uint64)
	AddRecordsSkipped(num uint64)
	AddProviderErrors(num uint64)
	ObserveBatchDuration(dur time.Duration)
}

type Config interface {
	GetPrometheusConfig() PrometheusConfig
}

func GetStatsCollector(cfg Config) StatsCollector {
	promConfig := cfg.GetPrometheusConfig()
	if !promConfig.Enabled {
		return NewNoopStatsCollector()
	}
	return NewPrometheusCollector(promConfig)
}
