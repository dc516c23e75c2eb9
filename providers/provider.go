package providers

import (
	"context"

	"github.com/UnownHash/isochroner/models"
)

// Request is one batch worth of isochrone requests.
type Request struct {
	Boundaries      []*models.Boundary
	AccessToken     string
	DurationMinutes int
}

// Provider computes isochrones for a batch of boundaries. It returns at
// most one row per boundary. Boundaries it could not process are left
// out; any other failure fails the whole call.
type Provider interface {
	ProviderName() string
	RequestIsochrones(context.Context, *Request) ([]*models.Isochrone, error)
}
