package boundaries

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const DEFAULT_ID_COLUMN = "GEOID"

type Config struct {
	Filename string `koanf:"filename"`
	IdColumn string `koanf:"id_column"`
}

func (cfg *Config) Validate() error {
	if cfg.Filename == "" {
		return errors.New("no 'boundaries.filename' configured")
	}

	switch ext := strings.ToLower(filepath.Ext(cfg.Filename)); ext {
	case ".shp", ".geojson", ".json":
	default:
		return fmt.Errorf("'boundaries.filename' has unsupported extension '%s' (want .shp, .geojson or .json)", ext)
	}

	if cfg.IdColumn == "" {
		return errors.New("no 'boundaries.id_column' configured")
	}

	return nil
}

func GetDefaultConfig() Config {
	return Config{
		Filename: filepath.Join("shapefiles", "ti_2015_chi_only.shp"),
		IdColumn: DEFAULT_ID_COLUMN,
	}
}
