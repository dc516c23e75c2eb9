package areas

import (
	"fmt"
	"os"

	"github.com/UnownHash/isochroner/geo"
)

type Config struct {
	// geofence file. empty disables area filtering.
	Filename string `koanf:"filename"`
	// "Parent/Name", "Parent/*" or "Name". empty selects every area in the file.
	Names []string `koanf:"names"`
	// point of each boundary tested against the areas.
	Origin string `koanf:"origin"`
}

func (cfg *Config) Enabled() bool {
	return cfg.Filename != ""
}

func (cfg *Config) Validate() error {
	if !cfg.Enabled() {
		return nil
	}

	f, err := os.Open(cfg.Filename)
	if err != nil {
		return fmt.Errorf("'areas.filename' is '%s', which is missing or not accessible: %w", cfg.Filename, err)
	}
	f.Close()

	if _, err := geo.ParseOriginMode(cfg.Origin); err != nil {
		return fmt.Errorf("'areas.origin': %w", err)
	}

	return nil
}
