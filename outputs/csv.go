package outputs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/models"
)

// columns written after the keep columns.
var csvFieldColumns = []string{"duration", "profile", "lat", "lon", "geometry"}

var _ Writer = (*CSVWriter)(nil)

type CSVWriter struct {
	logger   *logrus.Logger
	filename string
}

func (*CSVWriter) WriterName() string {
	return "csv"
}

func (writer *CSVWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	header := append(append(make([]string, 0, len(keepColumns)+len(csvFieldColumns)), keepColumns...), csvFieldColumns...)

	err := writeFileReplace(writer.filename, func(w io.Writer) error {
		csvWriter := csv.NewWriter(w)

		if err := csvWriter.Write(header); err != nil {
			return err
		}

		record := make([]string, len(header))
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(row.Keys) != len(keepColumns) {
				return fmt.Errorf("row for '%s' has %d key values, expected %d", row.BoundaryId, len(row.Keys), len(keepColumns))
			}
			if row.Geometry == nil {
				return fmt.Errorf("row for '%s' has no geometry", row.BoundaryId)
			}

			n := copy(record, row.Keys)
			record[n] = strconv.Itoa(row.DurationMinutes)
			record[n+1] = row.Profile
			record[n+2] = strconv.FormatFloat(row.Origin.Lat(), 'f', -1, 64)
			record[n+3] = strconv.FormatFloat(row.Origin.Lon(), 'f', -1, 64)
			record[n+4] = wkt.MarshalString(row.Geometry)

			if err := csvWriter.Write(record); err != nil {
				return err
			}
		}

		csvWriter.Flush()
		return csvWriter.Error()
	})

	if err != nil {
		return err
	}

	writer.logger.Infof("CSVWriter: wrote %d row(s) to '%s'", len(rows), writer.filename)
	return nil
}

func NewCSVWriter(logger *logrus.Logger, filename string) (*CSVWriter, error) {
	if filename == "" {
		return nil, errors.New("no csv output filename given")
	}
	writer := &CSVWriter{
		logger:   logger,
		filename: filename,
	}
	return writer, nil
}

// ReadCSV reads back a file written by CSVWriter. The key columns are
// every column before the fixed trailing ones. BoundaryId is taken from
// the first key column, if any.
func ReadCSV(filename string) ([]string, []*models.Isochrone, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("'%s' is empty", filename)
		}
		return nil, nil, fmt.Errorf("failed to read CSV header from '%s': %w", filename, err)
	}

	numKeys := len(header) - len(csvFieldColumns)
	if numKeys < 0 {
		return nil, nil, fmt.Errorf("'%s' does not look like isochrone output: header %v", filename, header)
	}
	for idx, col := range csvFieldColumns {
		if header[numKeys+idx] != col {
			return nil, nil, fmt.Errorf("'%s' does not look like isochrone output: expected column '%s', got '%s'", filename, col, header[numKeys+idx])
		}
	}

	keepColumns := header[:numKeys]
	var rows []*models.Isochrone

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("failed to read record from '%s': %w", filename, err)
		}

		row, err := isochroneFromRecord(record, numKeys)
		if err != nil {
			return nil, nil, fmt.Errorf("'%s' line %d: %w", filename, line, err)
		}
		rows = append(rows, row)
	}

	return keepColumns, rows, nil
}

func isochroneFromRecord(record []string, numKeys int) (*models.Isochrone, error) {
	fields := record[numKeys:]

	duration, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("bad duration '%s': %w", fields[0], err)
	}
	lat, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("bad lat '%s': %w", fields[2], err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("bad lon '%s': %w", fields[3], err)
	}
	geometry, err := wkt.Unmarshal(fields[4])
	if err != nil {
		return nil, fmt.Errorf("bad geometry: %w", err)
	}

	row := &models.Isochrone{
		Keys:            append([]string(nil), record[:numKeys]...),
		DurationMinutes: duration,
		Profile:         fields[1],
		Origin:          orb.Point{lon, lat},
		Geometry:        geometry,
	}
	if numKeys > 0 {
		row.BoundaryId = row.Keys[0]
	}

	return row, nil
}
