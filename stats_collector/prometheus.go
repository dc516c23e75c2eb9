package stats_collector

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	DEFAULT_PROMETHEUS_NAMESPACE = "isochroner"
)

type PrometheusConfig struct {
	Enabled    bool      `koanf:"enabled"`
	Token      string    `koanf:"token"`
	BucketSize []float64 `koanf:"bucket_size"`
	Namespace  string    `koanf:"namespace"`
	// Textfile, when set, receives a dump of all metrics at the end of a
	// run. Should end in .prom for node_exporter to pick it up.
	Textfile string `koanf:"textfile"`
}

func (cfg *PrometheusConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.BucketSize) == 0 {
		return errors.New("metrics.bucket_size should not be empty")
	}
	if cfg.Textfile != "" && filepath.Ext(cfg.Textfile) != ".prom" {
		return errors.New("metrics.textfile should end in .prom")
	}
	return nil
}

func GetDefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		BucketSize: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		Namespace:  DEFAULT_PROMETHEUS_NAMESPACE,
	}
}

var _ StatsCollector = (*PrometheusCollector)(nil)

type PrometheusCollector struct {
	config   PrometheusConfig
	registry *prometheus.Registry

	batchesProcessed   prometheus.Counter
	recordsRequested   prometheus.Counter
	isochronesReturned prometheus.Counter
	recordsSkipped     prometheus.Counter
	providerErrors     prometheus.Counter
	batchDuration      prometheus.Histogram
}

func (col *PrometheusCollector) Name() string {
	return "prometheus"
}

func (col *PrometheusCollector) RegisterGinEngine(engine *gin.Engine) {
	p := ginprom.New(
		ginprom.Engine(engine),
		ginprom.Registry(col.registry),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Token(col.config.Token),
		ginprom.BucketSize(col.config.BucketSize),
	)
	engine.Use(p.Instrument())
}

func (col *PrometheusCollector) WriteTextfile() error {
	if col.config.Textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(col.config.Textfile, col.registry)
}

func (col *PrometheusCollector) AddBatchesProcessed(num uint64) {
	col.batchesProcessed.Add(float64(num))
}

func (col *PrometheusCollector) AddRecordsRequested(num uint64) {
	col.recordsRequested.Add(float64(num))
}

func (col *PrometheusCollector) AddIsochronesReturned(num uint64) {
	col.isochronesReturned.Add(float64(num))
}

func (col *PrometheusCollector) AddRecordsSkipped(num uint64) {
	col.recordsSkipped.Add(float64(num))
}

func (col *PrometheusCollector) AddProviderErrors(num uint64) {
	col.providerErrors.Add(float64(num))
}

func (col *PrometheusCollector) ObserveBatchDuration(dur time.Duration) {
	col.batchDuration.Observe(dur.Seconds())
}

func NewPrometheusCollector(config PrometheusConfig) *PrometheusCollector {
	ns := config.Namespace
	if ns == "" {
		ns = DEFAULT_PROMETHEUS_NAMESPACE
	}

	registry := prometheus.NewRegistry()
	collector := &PrometheusCollector{
		config:   config,
		registry: registry,
		batchesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "batches_processed",
				Help:      "Total number of batches sent to the isochrone provider",
			},
		),
		recordsRequested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "records_requested",
				Help:      "Total number of boundary records sent to the isochrone provider",
			},
		),
		isochronesReturned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "isochrones_returned",
				Help:      "Total number of isochrones returned by the provider",
			},
		),
		recordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "records_skipped",
				Help:      "Total number of records the provider could not process",
			},
		),
		providerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "provider_errors",
				Help:      "Total number of failed provider calls",
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "batch_duration_seconds",
				Help:      "Time taken by the provider to answer one batch",
				Buckets:   config.BucketSize,
			},
		),
	}

	processOpts := collectors.ProcessCollectorOpts{
		Namespace: ns,
	}

	registry.MustRegister(
		collectors.NewProcessCollector(processOpts),
		collectors.NewGoCollector(
			collectors.WithGoCollectorRuntimeMetrics(
				collectors.MetricsGC,
				collectors.MetricsMemory,
			),
		),
		collector.batchesProcessed,
		collector.recordsRequested,
		collector.isochronesReturned,
		collector.recordsSkipped,
		collector.providerErrors,
		collector.batchDuration,
	)

	return collector
}
