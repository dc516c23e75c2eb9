package outputs

import (
	"context"

	"github.com/UnownHash/isochroner/models"
)

// Writer persists the rows of a run. 'keepColumns' names the entries of
// each row's Keys.
type Writer interface {
	WriterName() string
	WriteIsochrones(ctx context.Context, keepColumns []string, rows []*models.Isochrone) error
}
