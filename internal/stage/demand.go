package stage

import (
	"context"

	"github.com/askiada/go-traffic-pipeline/internal/sumo"
)

// RandomTrips generates random validated trips for the class. Trip ids are prefixed with the class when
// prefixed is set. The validation routes are moved next to the trips when the tool wrote them.
func RandomTrips(name string, prefixed bool) *Stage {
	return &Stage{
		Name:    name,
		Kind:    KindDemandGeneration,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Network}},
		Outputs: []Output{{Artifact: Trips}, {Artifact: ValidationRoutes, Optional: true}},
		Tools:   []sumo.Tool{sumo.RandomTrips},
		Run: func(ctx context.Context, c *Call) error {
			demand := c.Config().Demand
			args := sumo.RandomTripsArgs{
				NetFile: c.Path(Network),
				Begin:   demand.StartTime,
				End:     demand.EndTime,
				Period:  demand.Period(),
				OutFile: c.Path(Trips),
				Class:   c.Job.Class,
			}
			if prefixed {
				args.Prefix = "trip" + sumo.ClassPrefix(c.Job.Class)
			}

			cmd := c.Env.Tools.RandomTripsCommand(args)
			cmd.Dir = c.Job.Layout.ScratchDir()
			err := c.Exec(ctx, cmd)
			if err != nil {
				return err
			}

			return c.Move(c.Job.Layout.Scratch(ValidationOutput), c.Path(ValidationRoutes), false)
		},
	}
}

// TransitSchedules generates public transport flows from the extracted stops and lines.
func TransitSchedules() *Stage {
	return &Stage{
		Name:    NameTransitSchedules,
		Kind:    KindDemandGeneration,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Network}, {Artifact: Stops}, {Artifact: Lines}},
		Outputs: []Output{{Artifact: Flows}},
		Tools:   []sumo.Tool{sumo.PTLines2Flows},
		Run: func(ctx context.Context, c *Call) error {
			demand := c.Config().Demand

			return c.Exec(ctx, c.Env.Tools.PTLines2FlowsCommand(sumo.PTLinesArgs{
				NetFile:   c.Path(Network),
				StopsFile: c.Path(Stops),
				LinesFile: c.Path(Lines),
				OutFile:   c.Path(Flows),
				Class:     c.Job.Class,
				Begin:     demand.StartTime,
				End:       demand.EndTime,
				Period:    demand.Period(),
			}))
		},
	}
}

// AggregateOD aggregates the random trips into a zone to zone relation.
func AggregateOD() *Stage {
	return &Stage{
		Name:    NameODMatrix,
		Kind:    KindDemandGeneration,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Trips}, {Artifact: Districts}},
		Outputs: []Output{{Artifact: ODMatrix}},
		Tools:   []sumo.Tool{sumo.Route2OD},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.Route2ODCommand(c.Path(Trips), c.Path(Districts), c.Path(ODMatrix)))
		},
	}
}

// ExpandOD expands the zone relation into trips.
func ExpandOD() *Stage {
	return &Stage{
		Name:    NameODTrips,
		Kind:    KindDemandGeneration,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: ODMatrix}, {Artifact: Districts}},
		Outputs: []Output{{Artifact: ODTrips}},
		Tools:   []sumo.Tool{sumo.OD2Trips},
		Run: func(ctx context.Context, c *Call) error {
			demand := c.Config().Demand

			return c.Exec(ctx, c.Env.Tools.OD2TripsCommand(
				c.Path(ODMatrix), c.Path(Districts), demand.StartTime, demand.EndTime, c.Path(ODTrips), c.Job.Class,
			))
		},
	}
}
