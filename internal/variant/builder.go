package variant

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/stage"
)

var log = logrus.WithField("module", "variant")

// ErrUnknownVariant is returned when no plan is defined for a variant name.
var ErrUnknownVariant = errors.New("unknown variant")

// Builder composes a plan from stage names.
type Builder struct {
	name     string
	registry *stage.Registry
	region   []string
	class    []string
}

// NewBuilder creates a builder looking stages up in registry.
func NewBuilder(name string, registry *stage.Registry) *Builder {
	return &Builder{name: name, registry: registry}
}

// Region appends stages run once per region.
func (b *Builder) Region(names ...string) *Builder {
	b.region = append(b.region, names...)

	return b
}

// Class appends stages run once per vehicle class.
func (b *Builder) Class(names ...string) *Builder {
	b.class = append(b.class, names...)

	return b
}

// Build resolves the stages and validates their wiring. Every failure is a configuration error.
func (b *Builder) Build() (*Plan, error) {
	plan := &Plan{Name: b.name}

	lookup := func(names []string) ([]*stage.Stage, error) {
		stages := make([]*stage.Stage, 0, len(names))
		for _, name := range names {
			st, err := b.registry.Lookup(name)
			if err != nil {
				return nil, err
			}
			stages = append(stages, st)
		}

		return stages, nil
	}

	var err error
	plan.RegionStages, err = lookup(b.region)
	if err == nil {
		plan.ClassStages, err = lookup(b.class)
	}
	if err == nil {
		err = plan.link()
	}
	if err != nil {
		return nil, stage.NewError(stage.KindConfiguration, b.name, "invalid plan", err)
	}

	log.WithField("variant", b.name).Debugf("plan built with %d region and %d class stages", len(plan.RegionStages), len(plan.ClassStages))

	return plan, nil
}

// ForVariant builds the plan of a variant.
func ForVariant(variant string, registry *stage.Registry) (*Plan, error) {
	b := NewBuilder(variant, registry)

	switch variant {
	case config.VariantOSM:
		b.Region(stage.NameAcquire, stage.NameConvertNetconvert).
			Class(stage.NameRandomTrips, stage.NameRoute, stage.NameWriteConfig, stage.NameSimulate, stage.NameExport)
	case config.VariantOSMPoly:
		b.Region(stage.NameAcquire, stage.NameConvertOsmBuild, stage.NameExtractPolygons).
			Class(stage.NameRandomTrips, stage.NameRoute, stage.NameWriteConfigPolygons, stage.NameSimulate, stage.NameExport)
	case config.VariantSynthetic:
		b.Region(stage.NameGenerateRandom).
			Class(stage.NameRandomTrips, stage.NameRoute, stage.NameWriteConfigRelative, stage.NameSimulate, stage.NameExport)
	case config.VariantSyntheticGrid:
		b.Region(stage.NameGenerateGrid).
			Class(stage.NameRandomTrips, stage.NameRoute, stage.NameWriteConfigRelative, stage.NameSimulate, stage.NameExport)
	case config.VariantTransit:
		b.Region(stage.NameAcquire, stage.NameConvertTransit).
			Class(stage.NameTransitSchedules, stage.NameRandomTripsPrefixed, stage.NameRoute, stage.NameWriteConfigTransit,
				stage.NameSimulateDirect, stage.NameExport)
	case config.VariantTAZ:
		b.Region(stage.NameAcquire, stage.NameConvertOsmBuild, stage.NameExtractTAZPolygons).
			Class(stage.NameExtractDistricts, stage.NameRandomTrips, stage.NameODMatrix, stage.NameODTrips, stage.NameRouteOD,
				stage.NameWriteConfigPolygons, stage.NameSimulate, stage.NameExport)
	default:
		return nil, stage.NewError(stage.KindConfiguration, variant, "no plan", ErrUnknownVariant)
	}

	return b.Build()
}
