package isochrone_client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DEFAULT_URL             = "https://api.mapbox.com"
	DEFAULT_PROFILE         = "mapbox/driving"
	DEFAULT_TIMEOUT_SECONDS = 30
)

type Config struct {
	Url            string `koanf:"url" json:"url"`
	Profile        string `koanf:"profile" json:"profile"`
	TimeoutSeconds int    `koanf:"timeout_seconds" json:"timeout_seconds"`
}

func (cfg *Config) Validate() error {
	if cfg.Url == "" {
		return errors.New("no isochrone provider url configured")
	}

	uri, err := url.Parse(cfg.Url)
	if err != nil {
		return fmt.Errorf("isochrone provider url looks malformed: %w", err)
	}
	if uri.Scheme != "http" && uri.Scheme != "https" {
		return fmt.Errorf("isochrone provider url '%s' should be http or https", cfg.Url)
	}

	switch cfg.Profile {
	case "mapbox/driving", "mapbox/driving-traffic", "mapbox/walking", "mapbox/cycling":
	case "":
		return errors.New("no isochrone provider profile configured")
	default:
		if !strings.Contains(cfg.Profile, "/") {
			return fmt.Errorf("isochrone provider profile '%s' should look like 'mapbox/driving'", cfg.Profile)
		}
	}

	if cfg.TimeoutSeconds < 0 {
		return errors.New("isochrone provider timeout_seconds must be >= 0")
	}

	return nil
}

func GetDefaultConfig() Config {
	return Config{
		Url:            DEFAULT_URL,
		Profile:        DEFAULT_PROFILE,
		TimeoutSeconds: DEFAULT_TIMEOUT_SECONDS,
	}
}
