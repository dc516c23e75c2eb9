package boundaries

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/models"
)

var _ Source = (*Loader)(nil)

// Loader reads boundaries from a shapefile or a GeoJSON file.
type Loader struct {
	logger   *logrus.Logger
	filename string
	idColumn string
}

func (loader *Loader) SourceName() string {
	return loader.filename
}

func (loader *Loader) LoadBoundaries(ctx context.Context) ([]*models.Boundary, error) {
	var boundaries []*models.Boundary
	var err error

	loader.logger.Infof("Loading boundaries from '%s'", loader.filename)

	switch strings.ToLower(filepath.Ext(loader.filename)) {
	case ".shp":
		boundaries, err = loader.loadShapefile(ctx)
	default:
		boundaries, err = loader.loadGeoJSON(ctx)
	}

	if err != nil {
		return nil, err
	}

	if err := checkUniqueIds(boundaries, loader.idColumn); err != nil {
		return nil, err
	}

	loader.logger.Infof("Loaded %d boundaries from '%s'", len(boundaries), loader.filename)

	return boundaries, nil
}

func checkUniqueIds(boundaries []*models.Boundary, idColumn string) error {
	seen := make(map[string]int, len(boundaries))
	for _, boundary := range boundaries {
		if prev, ok := seen[boundary.Id]; ok {
			return fmt.Errorf("%s '%s' appears more than once (records %d and %d)", idColumn, boundary.Id, prev, boundary.Index)
		}
		seen[boundary.Id] = boundary.Index
	}
	return nil
}

func NewLoader(logger *logrus.Logger, config Config) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	loader := &Loader{
		logger:   logger,
		filename: config.Filename,
		idColumn: config.IdColumn,
	}
	return loader, nil
}
