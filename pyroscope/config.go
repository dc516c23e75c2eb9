package pyroscope

import (
	"errors"
	"net/url"
)

const DEFAULT_APPLICATION_NAME = "isochroner"

// Config for continuous profiling. Profiling is off unless ServerAddress
// is set.
type Config struct {
	ApplicationName      string `koanf:"application_name"`
	ServerAddress        string `koanf:"server_address"`
	ApiKey               string `koanf:"api_key"`
	MutexProfileFraction int    `koanf:"mutex_profile_fraction"`
	BlockProfileRate     int    `koanf:"block_profile_rate"`
}

func (cfg *Config) Enabled() bool {
	return cfg.ServerAddress != ""
}

func (cfg *Config) Validate() error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.ApplicationName == "" {
		return errors.New("pyroscope.application_name should not be empty")
	}
	if u, err := url.Parse(cfg.ServerAddress); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("pyroscope.server_address should be a url like http://localhost:4040")
	}
	if cfg.MutexProfileFraction < 0 || cfg.BlockProfileRate < 0 {
		return errors.New("pyroscope profile rates should not be negative")
	}
	return nil
}

func GetDefaultConfig() Config {
	return Config{
		ApplicationName: DEFAULT_APPLICATION_NAME,
	}
}
