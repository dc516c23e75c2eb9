package areas

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/boundaries"
	"github.com/UnownHash/isochroner/geo"
	"github.com/UnownHash/isochroner/models"
)

// AreaFilter keeps boundaries whose origin point falls within one of the
// selected areas.
type AreaFilter struct {
	logger     *logrus.Logger
	fences     *geo.FenceRTree[AreaName]
	originMode geo.OriginMode
}

func (filter *AreaFilter) Contains(boundary *models.Boundary) bool {
	matches := filter.fences.GetMatchesPoint(geo.OriginPoint(boundary.Geometry, filter.originMode))
	if len(matches) == 0 {
		return false
	}
	if filter.logger.IsLevelEnabled(logrus.DebugLevel) {
		filter.logger.Debugf("AreaFilter: boundary '%s' is within %s", boundary.Id, matches[0])
	}
	return true
}

func (filter *AreaFilter) FilterBoundaries(ctx context.Context, boundaries []*models.Boundary) ([]*models.Boundary, error) {
	filtered := make([]*models.Boundary, 0, len(boundaries))

	for _, boundary := range boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter.Contains(boundary) {
			filter.logger.Debugf("AreaFilter: dropping boundary '%s': not within any area", boundary.Id)
			continue
		}
		// keep Index dense so batches and outputs follow the filtered order.
		filtered = append(filtered, &models.Boundary{
			Index:      len(filtered),
			Id:         boundary.Id,
			Attributes: boundary.Attributes,
			Geometry:   boundary.Geometry,
		})
	}

	return filtered, nil
}

func NewAreaFilter(logger *logrus.Logger, config Config) (*AreaFilter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.Enabled() {
		return nil, errors.New("no areas filename configured")
	}

	originMode, _ := geo.ParseOriginMode(config.Origin)

	features, err := geo.LoadFeaturesFromFile(config.Filename)
	if err != nil {
		return nil, fmt.Errorf("AreaFilter: failed to load areas: %w", err)
	}

	wanted := AreaStringsToAreaNames(config.Names)
	fences := geo.NewFenceRTree[AreaName]()

	for _, feature := range features {
		name := feature.Properties.MustString("name", "")
		if name == "" {
			logger.Warn("AreaFilter: skipping area with empty name. make sure name property is set.")
			continue
		}
		areaName := NewAreaName(feature.Properties.MustString("parent", ""), name)

		if len(wanted) > 0 && !areaName.Matches(wanted) {
			continue
		}

		if err := fences.InsertFeature(feature, areaName); err != nil {
			logger.Warnf("AreaFilter: skipping area '%s': %v", areaName, err)
			continue
		}
		logger.Infof("AreaFilter: using area '%s'", areaName)
	}

	if fences.Len() == 0 {
		return nil, fmt.Errorf("AreaFilter: no usable areas selected from '%s'", config.Filename)
	}

	return &AreaFilter{
		logger:     logger,
		fences:     fences,
		originMode: originMode,
	}, nil
}

var _ boundaries.Source = (*FilteredSource)(nil)

// FilteredSource applies an AreaFilter to another boundaries.Source.
type FilteredSource struct {
	logger *logrus.Logger
	source boundaries.Source
	filter *AreaFilter
}

func (src *FilteredSource) SourceName() string {
	return src.source.SourceName() + " (area filtered)"
}

func (src *FilteredSource) LoadBoundaries(ctx context.Context) ([]*models.Boundary, error) {
	all, err := src.source.LoadBoundaries(ctx)
	if err != nil {
		return nil, err
	}

	filtered, err := src.filter.FilterBoundaries(ctx, all)
	if err != nil {
		return nil, err
	}

	src.logger.Infof("AreaFilter: kept %d of %d boundaries", len(filtered), len(all))

	return filtered, nil
}

func NewFilteredSource(logger *logrus.Logger, source boundaries.Source, filter *AreaFilter) *FilteredSource {
	return &FilteredSource{
		logger: logger,
		source: source,
		filter: filter,
	}
}
