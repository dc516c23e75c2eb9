package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/isochrone_client"
	"github.com/UnownHash/isochroner/models"
)

// one request at a time unless configured otherwise.
const DEFAULT_CONCURRENCY = 1

var _ Provider = (*MapboxProvider)(nil)

type MapboxProvider struct {
	logger      *logrus.Logger
	client      *isochrone_client.Client
	originMode  geo.OriginMode
	concurrency int
}

func (*MapboxProvider) ProviderName() string {
	return "mapbox"
}

func isochroneGeometry(fc *geojson.FeatureCollection) (orb.Geometry, error) {
	for _, feature := range fc.Features {
		if geo.GeometrySupported(feature.Geometry) {
			return feature.Geometry, nil
		}
	}
	return nil, fmt.Errorf("%w: no polygon in %d feature(s)", isochrone_client.ErrMalformedResponse, len(fc.Features))
}

func (provider *MapboxProvider) requestOne(ctx context.Context, req *Request, boundary *models.Boundary) (*models.Isochrone, error) {
	origin := geo.OriginPoint(boundary.Geometry, provider.originMode)

	fc, err := provider.client.GetIsochrone(ctx, req.AccessToken, origin, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	geometry, err := isochroneGeometry(fc)
	if err != nil {
		return nil, err
	}

	return &models.Isochrone{
		BoundaryId:      boundary.Id,
		DurationMinutes: req.DurationMinutes,
		Profile:         provider.client.Profile(),
		Origin:          origin,
		Geometry:        geometry,
	}, nil
}

// RequestIsochrones issues one request per boundary, at most
// 'concurrency' at a time, and returns the rows in batch order.
func (provider *MapboxProvider) RequestIsochrones(ctx context.Context, req *Request) ([]*models.Isochrone, error) {
	l := len(req.Boundaries)
	if l == 0 {
		return nil, nil
	}

	results := make([]*models.Isochrone, l)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(provider.concurrency, l))

	for idx, boundary := range req.Boundaries {
		idx, boundary := idx, boundary
		g.Go(func() error {
			isochrone, err := provider.requestOne(gctx, req, boundary)
			if err != nil {
				if errors.Is(err, isochrone_client.ErrInvalidInput) {
					provider.logger.Warnf("MapboxProvider: skipping boundary '%s': %v", boundary.Id, err)
					return nil
				}
				return fmt.Errorf("boundary '%s': %w", boundary.Id, err)
			}
			results[idx] = isochrone
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := results[:0]
	for _, isochrone := range results {
		if isochrone != nil {
			rows = append(rows, isochrone)
		}
	}

	return rows, nil
}

func NewMapboxProvider(logger *logrus.Logger, client *isochrone_client.Client, originMode geo.OriginMode, concurrency int) (*MapboxProvider, error) {
	if client == nil {
		return nil, errors.New("no isochrone client given")
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}

	provider := &MapboxProvider{
		logger:      logger,
		client:      client,
		originMode:  originMode,
		concurrency: concurrency,
	}
	return provider, nil
}
