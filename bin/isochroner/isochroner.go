package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/areas"
	"github.com/UnownHash/isochroner/boundaries"
	"github.com/UnownHash/isochroner/db_store"
	"github.com/UnownHash/isochroner/exporter"
	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/httpserver"
	"github.com/UnownHash/isochroner/isochrone_client"
	"github.com/UnownHash/isochroner/outputs"
	"github.com/UnownHash/isochroner/providers"
	"github.com/UnownHash/isochroner/pyroscope"
	"github.com/UnownHash/isochroner/stats_collector"
	"github.com/UnownHash/isochroner/version"
)

const (
	DEFAULT_CONFIG_FILENAME = "configs/isochroner.toml"
)

func usage(flagSet *flag.FlagSet, output io.Writer) {
	fmt.Fprintf(output, "isochroner version %s\n", version.APP_VERSION)
	fmt.Fprintf(output, "Usage: %s [-debug] [-help] [-f <config-filename>] [-batch-size N] [-duration M] [-out <csv-filename>] [<boundary-file>]\n", os.Args[0])
	fmt.Fprint(output, "\n")
	fmt.Fprint(output, "Requests an isochrone for every record of <boundary-file> (.shp or .geojson)\n")
	fmt.Fprint(output, "and writes them to a CSV file.\n")
	fmt.Fprint(output, "\n")
	fmt.Fprint(output, "Options:\n")
	flagSet.SetOutput(output)
	flagSet.PrintDefaults()
	fmt.Fprint(output, "\n")
}

func buildSource(logger *logrus.Logger, cfg *Config) (boundaries.Source, error) {
	loader, err := boundaries.NewLoader(logger, cfg.Boundaries)
	if err != nil {
		return nil, err
	}

	if !cfg.Areas.Enabled() {
		return loader, nil
	}

	areaFilter, err := areas.NewAreaFilter(logger, cfg.Areas)
	if err != nil {
		return nil, err
	}

	return areas.NewFilteredSource(logger, loader, areaFilter), nil
}

func buildProvider(logger *logrus.Logger, cfg *Config) (providers.Provider, error) {
	client, err := isochrone_client.NewClient(logger, cfg.Provider.ClientConfig())
	if err != nil {
		return nil, err
	}

	originMode, err := geo.ParseOriginMode(cfg.Provider.Origin)
	if err != nil {
		return nil, err
	}

	return providers.NewMapboxProvider(logger, client, originMode, cfg.Provider.Concurrency)
}

// buildWriter returns the writers for the configured outputs, along with
// a cleanup function for anything they hold open. The CSV writer runs
// last, so a failing secondary output leaves the previous CSV in place.
func buildWriter(logger *logrus.Logger, cfg *Config) (outputs.Writer, func(), error) {
	var writers outputs.MultiWriter
	cleanupFn := func() {}

	if cfg.Output.GeoJSONFilename != "" {
		writer, err := outputs.NewGeoJSONWriter(logger, cfg.Output.GeoJSONFilename)
		if err != nil {
			return nil, cleanupFn, err
		}
		writers.Append(writer)
	}

	if cfg.Output.ShapefileFilename != "" {
		writer, err := outputs.NewShapefileWriter(logger, cfg.Output.ShapefileFilename, cfg.Output.ShapefileEPSG)
		if err != nil {
			return nil, cleanupFn, err
		}
		writers.Append(writer)
	}

	if cfg.Db != nil {
		dbStore, err := db_store.NewIsochronesDBStore(*cfg.Db, logger)
		if err != nil {
			return nil, cleanupFn, fmt.Errorf("failed to create isochrones dbStore: %w", err)
		}
		cleanupFn = func() { dbStore.Close() }
		writers.Append(outputs.NewDBWriter(logger, dbStore))
	}

	csvWriter, err := outputs.NewCSVWriter(logger, cfg.Output.Filename)
	if err != nil {
		cleanupFn()
		return nil, func() {}, err
	}
	writers.Append(csvWriter)

	if len(writers) == 1 {
		return writers[0], cleanupFn, nil
	}
	return writers, cleanupFn, nil
}

func logExportError(logger *logrus.Logger, err error) {
	var inputErr *exporter.InputReadError
	var providerErr *exporter.ProviderError
	var outputErr *exporter.OutputWriteError

	switch {
	case errors.As(err, &inputErr):
		logger.Errorf("EXPORT: input error: %v", err)
	case errors.As(err, &providerErr):
		logger.Errorf("EXPORT: aborted, nothing was written: %v", err)
		if errors.Is(err, isochrone_client.ErrUnauthorized) {
			logger.Errorf("EXPORT: check provider.access_token")
		}
	case errors.As(err, &outputErr):
		logger.Errorf("EXPORT: output error: %v", err)
	case errors.Is(err, context.Canceled):
		logger.Errorf("EXPORT: interrupted, nothing was written")
	default:
		logger.Errorf("EXPORT: %v", err)
	}
}

func main() {
	flagSet := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	helpFlag := flagSet.Bool("help", false, "help!")
	debugFlag := flagSet.Bool("debug", false, "override config and turn on debug logging")
	flagSet.BoolVar(helpFlag, "h", false, "help!")
	configFileFlag := flagSet.String("f", DEFAULT_CONFIG_FILENAME, "config file to use. the default one is optional")
	batchSizeFlag := flagSet.Int("batch-size", 0, "override exporter.batch_size")
	durationFlag := flagSet.Int("duration", 0, "override exporter.duration (minutes)")
	outFlag := flagSet.String("out", "", "override output.filename")
	tokenFlag := flagSet.String("token", "", "override provider.access_token")

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s", err)
		usage(flagSet, os.Stderr)
		os.Exit(2)
	}

	if *helpFlag {
		usage(flagSet, os.Stdout)
		os.Exit(0)
	}

	args := flagSet.Args()
	if len(args) > 1 {
		usage(flagSet, os.Stderr)
		os.Exit(1)
	}

	configRequired := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "f" {
			configRequired = true
		}
	})

	cfg, err := LoadConfig(*configFileFlag, configRequired)
	if err != nil {
		log.Fatal(err)
	}

	if len(args) == 1 {
		cfg.Boundaries.Filename = args[0]
	}
	if *batchSizeFlag != 0 {
		cfg.Exporter.BatchSize = *batchSizeFlag
	}
	if *durationFlag != 0 {
		cfg.Exporter.DurationMinutes = *durationFlag
	}
	if *outFlag != "" {
		cfg.Output.Filename = *outFlag
	}
	if *tokenFlag != "" {
		cfg.Provider.AccessToken = *tokenFlag
	}
	if *debugFlag {
		cfg.Logging.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := cfg.CreateLogger(false)
	logger.Infof("STARTUP: Version %s. Config loaded.", version.APP_VERSION)

	os.Exit(run(logger, cfg))
}

func run(logger *logrus.Logger, cfg *Config) int {
	statsCollector := stats_collector.GetStatsCollector(cfg)
	logger.Infof("STARTUP: using %s stats collector", statsCollector.Name())

	if cfg.Pyroscope.Enabled() {
		profiler, err := pyroscope.Run(logger, cfg.Pyroscope)
		if err != nil {
			logger.Errorf("STARTUP: Failed to initialize pyroscope: %v", err)
		} else {
			logger.Info("STARTUP: Initialized pyroscope")
			defer profiler.Stop()
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancelFn()

		sig_ch := make(chan os.Signal, 1)
		signal.Notify(sig_ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig_ch)
		select {
		case <-ctx.Done():
			// export finished
		case sig := <-sig_ch:
			logger.Infof("received signal '%s'", sig.String())
		}
	}()

	logger.Debugf("STARTUP: signal handler installed.")

	source, err := buildSource(logger, cfg)
	if err != nil {
		logger.Errorf("failed to create boundary source: %v", err)
		return 1
	}

	provider, err := buildProvider(logger, cfg)
	if err != nil {
		logger.Errorf("failed to create isochrone provider: %v", err)
		return 1
	}

	writer, cleanupFn, err := buildWriter(logger, cfg)
	defer cleanupFn()
	if err != nil {
		logger.Errorf("failed to create output writer(s): %v", err)
		return 1
	}

	runner, err := exporter.NewExportRunner(logger, cfg.Exporter, source, provider, writer, statsCollector)
	if err != nil {
		logger.Errorf("failed to create exporter: %v", err)
		return 1
	}

	if cfg.HTTP.Enabled() {
		httpServer, err := httpserver.NewHTTPServer(logger, runner, statsCollector)
		if err != nil {
			logger.Errorf("failed to create http server: %v", err)
			return 1
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Infof("STARTUP: status server listening on %s", cfg.HTTP.Addr)
			if err := httpServer.Run(ctx, cfg.HTTP.Addr, time.Second*5); err != nil {
				logger.Errorf("http server: %v", err)
			}
		}()
	}

	exitCode := 0

	result, err := runner.Export(ctx)
	if err != nil {
		logExportError(logger, err)
		exitCode = 1
	} else {
		logger.Infof("wrote %d isochrone(s) for %d record(s) to '%s'", result.Rows, result.Records, cfg.Output.Filename)
	}

	if err := statsCollector.WriteTextfile(); err != nil {
		logger.Warnf("failed to write metrics textfile: %v", err)
	}

	// stops the signal handler and http server.
	cancelFn()

	return exitCode
}
