package outputs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/models"
)

const (
	// dbf field names are limited to 10 characters.
	MAX_DBF_FIELD_NAME = 10
	KEY_FIELD_LENGTH   = 64
)

var _ Writer = (*ShapefileWriter)(nil)

type ShapefileWriter struct {
	logger   *logrus.Logger
	filename string
	prj      string
}

func (*ShapefileWriter) WriterName() string {
	return "shapefile"
}

func shapefileFields(keepColumns []string) ([]shp.Field, error) {
	fields := make([]shp.Field, 0, len(keepColumns)+4)
	seen := make(map[string]struct{})

	add := func(field shp.Field) error {
		name := field.String()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate dbf field name '%s'", name)
		}
		seen[name] = struct{}{}
		fields = append(fields, field)
		return nil
	}

	for _, col := range keepColumns {
		if len(col) > MAX_DBF_FIELD_NAME {
			return nil, fmt.Errorf("column '%s' is longer than %d characters, which shapefiles do not support", col, MAX_DBF_FIELD_NAME)
		}
		if err := add(shp.StringField(col, KEY_FIELD_LENGTH)); err != nil {
			return nil, err
		}
	}

	for _, field := range []shp.Field{
		shp.NumberField("duration", 4),
		shp.StringField("profile", 32),
		shp.FloatField("lat", 19, 8),
		shp.FloatField("lon", 19, 8),
	} {
		if err := add(field); err != nil {
			return nil, err
		}
	}

	return fields, nil
}

func writeShapes(ctx context.Context, filename string, fields []shp.Field, numKeys int, rows []*models.Isochrone) (err error) {
	shpWriter, err := shp.Create(filename, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("failed to create shapefile '%s': %w", filename, err)
	}
	defer func() {
		if closeErr := geo.CloseShapefile(shpWriter, filename); err == nil {
			err = closeErr
		}
	}()

	if err := shpWriter.SetFields(fields); err != nil {
		return err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		shape, err := geo.ShapeFromGeometry(row.Geometry)
		if err != nil {
			return fmt.Errorf("row for '%s': %w", row.BoundaryId, err)
		}

		n := int(shpWriter.Write(shape))

		values := make([]any, 0, len(fields))
		for idx := 0; idx < numKeys; idx++ {
			var v string
			if idx < len(row.Keys) {
				v = row.Keys[idx]
			}
			values = append(values, v)
		}
		values = append(values, row.DurationMinutes, row.Profile, row.Origin.Lat(), row.Origin.Lon())

		for fieldIdx, v := range values {
			if err := shpWriter.WriteAttribute(n, fieldIdx, v); err != nil {
				return fmt.Errorf("row for '%s': %w", row.BoundaryId, err)
			}
		}
	}

	return nil
}

// WriteIsochrones builds the shapefile in a temp directory next to the
// target and renames each component into place once it is complete. A
// failed write leaves any previous shapefile alone.
func (writer *ShapefileWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	fields, err := shapefileFields(keepColumns)
	if err != nil {
		return err
	}

	dir := filepath.Dir(writer.filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(dir, "."+filepath.Base(writer.filename)+".*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	tmpFilename := filepath.Join(tmpDir, "out.shp")

	if err := writeShapes(ctx, tmpFilename, fields, len(keepColumns), rows); err != nil {
		return err
	}

	if writer.prj != "" {
		if err := os.WriteFile(filepath.Join(tmpDir, "out.prj"), []byte(writer.prj), 0644); err != nil {
			return err
		}
	}

	base := strings.TrimSuffix(writer.filename, filepath.Ext(writer.filename))

	for _, ext := range []string{".dbf", ".shx", ".prj", ".shp"} {
		target := base + ext
		if ext == ".shp" {
			target = writer.filename
		}
		err := os.Rename(filepath.Join(tmpDir, "out"+ext), target)
		if ext == ".prj" && writer.prj == "" {
			// a stale .prj would describe the wrong crs.
			err = os.Remove(target)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		}
		if err != nil {
			return fmt.Errorf("failed to move shapefile into place: %w", err)
		}
	}

	writer.logger.Infof("ShapefileWriter: wrote %d shape(s) to '%s'", len(rows), writer.filename)
	return nil
}

// NewShapefileWriter creates a writer for 'filename' (.shp). A .prj is
// written alongside when 'epsg' is non-zero.
func NewShapefileWriter(logger *logrus.Logger, filename string, epsg int) (*ShapefileWriter, error) {
	if filename == "" {
		return nil, errors.New("no shapefile output filename given")
	}
	if strings.ToLower(filepath.Ext(filename)) != ".shp" {
		return nil, fmt.Errorf("shapefile output '%s' should end in .shp", filename)
	}

	writer := &ShapefileWriter{
		logger:   logger,
		filename: filename,
	}

	if epsg != 0 {
		prj, err := PrjForEPSG(epsg)
		if err != nil {
			return nil, err
		}
		writer.prj = prj
	}

	return writer, nil
}
