package stage

import (
	"context"

	"github.com/samber/lo"

	"github.com/askiada/go-traffic-pipeline/internal/sumo"
)

// DistrictClasses are the vehicle classes edgesInDistricts.py can filter on.
var DistrictClasses = []string{"passenger", "bicycle", "bus", "truck"}

// ExtractPolygons extracts the map polygons, or the traffic assignment zones when taz is set. The stage is
// skipped when the polygon type map does not exist.
func ExtractPolygons(name string, taz bool) *Stage {
	return &Stage{
		Name:     name,
		Kind:     KindExtraction,
		Scope:    RegionScope,
		Optional: true,
		Inputs:   []Input{{Artifact: Network}, {Artifact: Map}},
		Outputs:  []Output{{Artifact: Polygons}},
		Tools:    []sumo.Tool{sumo.Polyconvert},
		Run: func(ctx context.Context, c *Call) error {
			typeFile := c.Config().TypeMapPath(c.Config().Polygons.TypeFile)
			if !fileExists(typeFile) {
				return Skip("type map %s not found", typeFile)
			}

			return c.Exec(ctx, c.Env.Tools.PolyconvertCommand(c.Path(Network), c.Path(Map), typeFile, c.Path(Polygons), taz))
		},
	}
}

// ExtractDistricts assigns the network edges usable by the class to the zones.
func ExtractDistricts() *Stage {
	return &Stage{
		Name:     NameExtractDistricts,
		Kind:     KindExtraction,
		Scope:    ClassScope,
		Optional: true,
		Inputs:   []Input{{Artifact: Network}, {Artifact: Polygons}},
		Outputs:  []Output{{Artifact: Districts}},
		Tools:    []sumo.Tool{sumo.EdgesInDistricts},
		Run: func(ctx context.Context, c *Call) error {
			if !lo.Contains(DistrictClasses, c.Job.Class) {
				return Skip("vehicle class %q is not supported for zone extraction", c.Job.Class)
			}

			return c.Exec(ctx, c.Env.Tools.EdgesInDistrictsCommand(c.Path(Network), c.Path(Polygons), c.Path(Districts), c.Job.Class))
		},
	}
}
