package boundaries

import (
	"context"

	"github.com/UnownHash/isochroner/models"
)

// Source produces the boundary records for one run.
type Source interface {
	SourceName() string
	LoadBoundaries(context.Context) ([]*models.Boundary, error)
}
