package boundaries

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/models"
)

func (loader *Loader) checkProjection() {
	prjFilename := strings.TrimSuffix(loader.filename, ".shp")
	prjFilename = strings.TrimSuffix(prjFilename, ".SHP") + ".prj"

	prj, err := os.ReadFile(prjFilename)
	if err != nil {
		loader.logger.Warnf("Boundaries: no readable '%s', assuming lon/lat coordinates", prjFilename)
		return
	}

	if bytes.HasPrefix(bytes.TrimSpace(prj), []byte("PROJCS")) {
		loader.logger.Warnf("Boundaries: '%s' declares a projected coordinate system. Coordinates are sent to the provider as-is and should be lon/lat.", prjFilename)
	}
}

func (loader *Loader) loadShapefile(ctx context.Context) ([]*models.Boundary, error) {
	if _, err := os.Stat(loader.filename); err != nil {
		return nil, err
	}

	reader, err := shp.Open(loader.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile '%s': %w", loader.filename, err)
	}
	defer reader.Close()

	loader.checkProjection()

	fields := reader.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("shapefile '%s' has no attributes: missing or unreadable .dbf", loader.filename)
	}

	fieldNames := make([]string, len(fields))
	idIdx := -1
	for idx, field := range fields {
		fieldNames[idx] = field.String()
		if fieldNames[idx] == loader.idColumn {
			idIdx = idx
		}
	}

	if idIdx < 0 {
		return nil, fmt.Errorf("shapefile '%s' has no '%s' column (have: %s)", loader.filename, loader.idColumn, strings.Join(fieldNames, ","))
	}

	boundaries := make([]*models.Boundary, 0, reader.AttributeCount())

	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, shape := reader.Shape()

		geometry, err := geo.GeometryFromShape(shape)
		if err != nil {
			if errors.Is(err, geo.ErrNullShape) {
				loader.logger.Warnf("Boundaries: skipping record %d: no geometry", row)
				continue
			}
			return nil, fmt.Errorf("record %d: %w", row, err)
		}

		attributes := make(map[string]string, len(fieldNames))
		for idx, name := range fieldNames {
			attributes[name] = strings.TrimSpace(strings.Trim(reader.ReadAttribute(row, idx), "\x00"))
		}

		id := attributes[loader.idColumn]
		if id == "" {
			return nil, fmt.Errorf("record %d has an empty '%s'", row, loader.idColumn)
		}

		boundaries = append(boundaries, &models.Boundary{
			Index:      len(boundaries),
			Id:         id,
			Attributes: attributes,
			Geometry:   geometry,
		})
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile '%s': %w", loader.filename, err)
	}

	return boundaries, nil
}
