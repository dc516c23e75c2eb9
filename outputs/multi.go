package outputs

import (
	"context"
	"fmt"

	"github.com/UnownHash/isochroner/models"
)

// MultiWriter writes to each Writer in order, stopping at the first
// failure.
type MultiWriter []Writer

func (MultiWriter) WriterName() string {
	return "multi"
}

func (mWriter *MultiWriter) Append(writer Writer) {
	*mWriter = append(*mWriter, writer)
}

func (mWriter MultiWriter) WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error {
	for _, writer := range mWriter {
		if err := writer.WriteIsochrones(ctx, keepColumns, rows); err != nil {
			return fmt.Errorf("%s writer: %w", writer.WriterName(), err)
		}
	}
	return nil
}
