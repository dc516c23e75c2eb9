package exporter

import (
	"errors"
	"fmt"
)

const (
	DEFAULT_DURATION_MINUTES = 20
	DEFAULT_BATCH_SIZE       = 3

	MAX_DURATION_MINUTES = 60
)

type Config struct {
	// travel time for every isochrone in the run.
	DurationMinutes int `koanf:"duration"`
	// boundary columns copied into every output row.
	KeepColumns []string `koanf:"keep_columns"`
	// number of boundaries per provider call.
	BatchSize int `koanf:"batch_size"`

	// set from the provider section.
	AccessToken string `koanf:"-"`
}

func (cfg *Config) Validate() error {
	if cfg.DurationMinutes < 1 || cfg.DurationMinutes > MAX_DURATION_MINUTES {
		return fmt.Errorf("exporter.duration should be between 1 and %d minutes, got %d", MAX_DURATION_MINUTES, cfg.DurationMinutes)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("exporter.batch_size should be at least 1, got %d", cfg.BatchSize)
	}

	seen := make(map[string]struct{}, len(cfg.KeepColumns))
	for _, col := range cfg.KeepColumns {
		if col == "" {
			return errors.New("exporter.keep_columns should not contain empty names")
		}
		if _, ok := seen[col]; ok {
			return fmt.Errorf("exporter.keep_columns lists '%s' more than once", col)
		}
		seen[col] = struct{}{}
	}

	if cfg.AccessToken == "" {
		return errors.New("an access token for the isochrone provider is required")
	}

	return nil
}

func GetDefaultConfig() Config {
	return Config{
		DurationMinutes: DEFAULT_DURATION_MINUTES,
		KeepColumns:     []string{"GEOID"},
		BatchSize:       DEFAULT_BATCH_SIZE,
	}
}
