package stage

import "github.com/pkg/errors"

// ErrUnknownStage is returned when a name is not registered.
var ErrUnknownStage = errors.New("unknown stage")

// ErrDuplicateStage is returned when a name is registered twice.
var ErrDuplicateStage = errors.New("stage already registered")

// Registry holds stages by name.
type Registry struct {
	stages map[string]*Stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]*Stage{}}
}

// Register adds stages to the registry.
func (r *Registry) Register(stages ...*Stage) error {
	for _, st := range stages {
		if _, ok := r.stages[st.Name]; ok {
			return errors.Wrap(ErrDuplicateStage, st.Name)
		}
		r.stages[st.Name] = st
	}

	return nil
}

// Lookup returns the stage registered under name.
func (r *Registry) Lookup(name string) (*Stage, error) {
	st, ok := r.stages[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownStage, name)
	}

	return st, nil
}

// Stage names.
const (
	NameAcquire             = "acquire"
	NameConvertNetconvert   = "convert"
	NameConvertOsmBuild     = "convert-osmbuild"
	NameConvertTransit      = "convert-transit"
	NameGenerateRandom      = "generate-network"
	NameGenerateGrid        = "generate-network-grid"
	NameExtractPolygons     = "extract-polygons"
	NameExtractTAZPolygons  = "extract-taz-polygons"
	NameExtractDistricts    = "extract-districts"
	NameRandomTrips         = "random-trips"
	NameRandomTripsPrefixed = "random-trips-prefixed"
	NameTransitSchedules    = "transit-schedules"
	NameODMatrix            = "od-matrix"
	NameODTrips             = "od-trips"
	NameRoute               = "route"
	NameRouteOD             = "route-od"
	NameWriteConfig         = "write-config"
	NameWriteConfigPolygons = "write-config-poly"
	NameWriteConfigRelative = "write-config-relative"
	NameWriteConfigTransit  = "write-config-transit"
	NameSimulate            = "simulate"
	NameSimulateDirect      = "simulate-direct"
	NameExport              = "export"
)

// DefaultRegistry returns a registry holding every stage primitive.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// names are unique by construction
	_ = r.Register(
		Acquire(),
		ConvertNetconvert(),
		ConvertOsmBuild(),
		ConvertTransit(),
		GenerateNetwork(NameGenerateRandom, false),
		GenerateNetwork(NameGenerateGrid, true),
		ExtractPolygons(NameExtractPolygons, false),
		ExtractPolygons(NameExtractTAZPolygons, true),
		ExtractDistricts(),
		RandomTrips(NameRandomTrips, false),
		RandomTrips(NameRandomTripsPrefixed, true),
		TransitSchedules(),
		AggregateOD(),
		ExpandOD(),
		Route(NameRoute, Trips),
		Route(NameRouteOD, ODTrips),
		WriteConfig(NameWriteConfig, WriteConfigOptions{}),
		WriteConfig(NameWriteConfigPolygons, WriteConfigOptions{Additional: []Artifact{Polygons}}),
		WriteConfig(NameWriteConfigRelative, WriteConfigOptions{Relative: true}),
		WriteConfig(NameWriteConfigTransit, WriteConfigOptions{ExtraRoutes: []Artifact{Flows}, Relative: true}),
		Simulate(),
		SimulateDirect(),
		Export(),
	)

	return r
}
