package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/areas"
	"github.com/UnownHash/isochroner/boundaries"
	"github.com/UnownHash/isochroner/db_store"
	"github.com/UnownHash/isochroner/exporter"
	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/httpserver"
	"github.com/UnownHash/isochroner/isochrone_client"
	"github.com/UnownHash/isochroner/logging"
	"github.com/UnownHash/isochroner/outputs"
	"github.com/UnownHash/isochroner/providers"
	"github.com/UnownHash/isochroner/pyroscope"
	"github.com/UnownHash/isochroner/stats_collector"
)

const ACCESS_TOKEN_ENV = "MAPBOX_ACCESS_TOKEN"

type ProviderConfig struct {
	AccessToken    string `koanf:"access_token"`
	Url            string `koanf:"url"`
	Profile        string `koanf:"profile"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	// "label" or "centroid"
	Origin string `koanf:"origin"`
	// requests in flight at once within a batch.
	Concurrency int `koanf:"concurrency"`
}

func (cfg *ProviderConfig) ClientConfig() isochrone_client.Config {
	return isochrone_client.Config{
		Url:            cfg.Url,
		Profile:        cfg.Profile,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
}

func (cfg *ProviderConfig) Validate() error {
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv(ACCESS_TOKEN_ENV)
	}
	if cfg.AccessToken == "" {
		return fmt.Errorf("no provider.access_token configured (or set %s)", ACCESS_TOKEN_ENV)
	}

	clientConfig := cfg.ClientConfig()
	if err := clientConfig.Validate(); err != nil {
		return err
	}

	if _, err := geo.ParseOriginMode(cfg.Origin); err != nil {
		return fmt.Errorf("provider.origin: %w", err)
	}

	if cfg.Concurrency < 1 {
		return errors.New("provider.concurrency must be >= 1")
	}

	return nil
}

type OutputConfig struct {
	// CSV output, always written.
	Filename string `koanf:"filename"`

	GeoJSONFilename   string `koanf:"geojson_filename"`
	ShapefileFilename string `koanf:"shapefile_filename"`
	// .prj written next to the shapefile. 0 for none.
	ShapefileEPSG int `koanf:"shapefile_epsg"`
}

func (cfg *OutputConfig) Validate() error {
	if cfg.Filename == "" {
		return errors.New("no output.filename configured")
	}
	if cfg.ShapefileFilename != "" && cfg.ShapefileEPSG != 0 {
		if _, err := outputs.PrjForEPSG(cfg.ShapefileEPSG); err != nil {
			return fmt.Errorf("output.shapefile_epsg: %w", err)
		}
	}
	return nil
}

type Config struct {
	Boundaries boundaries.Config `koanf:"boundaries"`
	Areas      areas.Config      `koanf:"areas"`
	Exporter   exporter.Config   `koanf:"exporter"`
	Provider   ProviderConfig    `koanf:"provider"`
	Output     OutputConfig      `koanf:"output"`

	Db *db_store.DBConfig `koanf:"db"`

	Logging   logging.Config                   `koanf:"logging"`
	HTTP      httpserver.Config                `koanf:"http"`
	Metrics   stats_collector.PrometheusConfig `koanf:"metrics"`
	Pyroscope pyroscope.Config                 `koanf:"pyroscope"`
}

func (cfg *Config) CreateLogger(rotate bool) *logrus.Logger {
	return cfg.Logging.CreateLogger(rotate, true)
}

func (cfg *Config) GetPrometheusConfig() stats_collector.PrometheusConfig {
	return cfg.Metrics
}

func (cfg *Config) Validate() error {
	if err := cfg.Logging.Validate(); err != nil {
		return err
	}

	if err := cfg.Boundaries.Validate(); err != nil {
		return err
	}

	if err := cfg.Areas.Validate(); err != nil {
		return err
	}

	if err := cfg.Provider.Validate(); err != nil {
		return err
	}

	cfg.Exporter.AccessToken = cfg.Provider.AccessToken
	if err := cfg.Exporter.Validate(); err != nil {
		return err
	}

	if err := cfg.Output.Validate(); err != nil {
		return err
	}

	if cfg.Db != nil {
		if err := cfg.Db.Validate(); err != nil {
			return err
		}
	}

	if err := cfg.HTTP.Validate(); err != nil {
		return err
	}

	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}

	if err := cfg.Pyroscope.Validate(); err != nil {
		return err
	}

	return nil
}

func getDefaultConfig() Config {
	providerDefaults := isochrone_client.GetDefaultConfig()

	return Config{
		Boundaries: boundaries.GetDefaultConfig(),
		Exporter:   exporter.GetDefaultConfig(),
		Provider: ProviderConfig{
			Url:            providerDefaults.Url,
			Profile:        providerDefaults.Profile,
			TimeoutSeconds: providerDefaults.TimeoutSeconds,
			Origin:         string(geo.OriginLabel),
			Concurrency:    providers.DEFAULT_CONCURRENCY,
		},
		Output: OutputConfig{
			Filename: filepath.FromSlash("data/isochrones.csv"),
		},
		Logging:   logging.GetDefaultConfig(),
		Metrics:   stats_collector.GetDefaultPrometheusConfig(),
		Pyroscope: pyroscope.GetDefaultConfig(),
	}
}

// LoadConfig returns the defaults overlaid with 'filename'. A missing
// file is only an error when 'required' is set. The result is not
// validated.
func LoadConfig(filename string, required bool) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(structs.Provider(getDefaultConfig(), "koanf"), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't load default config: %w", err)
	}

	if _, err := os.Stat(filename); err == nil || required {
		err = k.Load(file.Provider(filename), toml.Parser())
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", filename, err)
		}
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
