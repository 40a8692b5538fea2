package stage

import (
	"context"

	"github.com/samber/lo"

	"github.com/askiada/go-traffic-pipeline/internal/runconfig"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
)

// Route computes the routes of the trips held by the given artifact.
func Route(name string, trips Artifact) *Stage {
	return &Stage{
		Name:    name,
		Kind:    KindRouting,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Network}, {Artifact: trips}},
		Outputs: []Output{{Artifact: Routes}},
		Tools:   []sumo.Tool{sumo.Duarouter},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.DuarouterCommand(c.Path(Network), c.Path(trips), c.Path(Routes)))
		},
	}
}

// WriteConfigOptions tunes the run configuration of a variant.
type WriteConfigOptions struct {
	// ExtraRoutes are appended to the route files.
	ExtraRoutes []Artifact
	// Additional files are referenced when they exist.
	Additional []Artifact
	// Relative writes paths relative to the output directory.
	Relative bool
}

// WriteConfig writes the run configuration of the class.
func WriteConfig(name string, opts WriteConfigOptions) *Stage {
	inputs := []Input{{Artifact: Network}, {Artifact: Routes}}
	for _, a := range opts.ExtraRoutes {
		inputs = append(inputs, Input{Artifact: a})
	}
	for _, a := range opts.Additional {
		inputs = append(inputs, Input{Artifact: a, Optional: true})
	}

	return &Stage{
		Name:    name,
		Kind:    KindConfigWrite,
		Scope:   ClassScope,
		Inputs:  inputs,
		Outputs: []Output{{Artifact: RunConfig}},
		Run: func(_ context.Context, c *Call) error {
			cfg := runconfig.RunConfig{
				NetFile:    c.Path(Network),
				RouteFiles: []string{c.Path(Routes)},
			}
			for _, a := range opts.ExtraRoutes {
				cfg.RouteFiles = append(cfg.RouteFiles, c.Path(a))
			}
			for _, a := range opts.Additional {
				if c.Env.DryRun || c.Exists(a) {
					cfg.AdditionalFiles = append(cfg.AdditionalFiles, c.Path(a))
				}
			}
			if opts.Relative {
				cfg.RelativeTo = c.Job.Layout.OutputDir
			}

			if c.Env.DryRun {
				c.Log.Infof("[dry-run] would write %s", c.Path(RunConfig))

				return nil
			}

			err := runconfig.Write(c.Path(RunConfig), cfg)
			if err != nil {
				return c.Fail(err, "unable to write run configuration")
			}
			c.Log.Infof("run configuration %s written", c.Path(RunConfig))

			return nil
		},
	}
}

// Simulate runs the simulation described by the run configuration.
func Simulate() *Stage {
	return &Stage{
		Name:    NameSimulate,
		Kind:    KindSimulation,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: RunConfig}},
		Outputs: []Output{{Artifact: Trace}},
		Tools:   []sumo.Tool{sumo.Sumo},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.SumoConfigCommand(c.Path(RunConfig), c.Path(Trace)))
		},
	}
}

// SimulateDirect runs the simulation from the network, the routes, the flows and the stops.
func SimulateDirect() *Stage {
	return &Stage{
		Name:    NameSimulateDirect,
		Kind:    KindSimulation,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Network}, {Artifact: Routes}, {Artifact: Flows, Optional: true}, {Artifact: Stops}},
		Outputs: []Output{{Artifact: Trace}},
		Tools:   []sumo.Tool{sumo.Sumo},
		Run: func(ctx context.Context, c *Call) error {
			routes := lo.Filter([]Artifact{Routes, Flows}, func(a Artifact, _ int) bool {
				return a == Routes || c.Env.DryRun || c.Exists(a)
			})
			routeFiles := lo.Map(routes, func(a Artifact, _ int) string { return c.Path(a) })

			return c.Exec(ctx, c.Env.Tools.SumoDirectCommand(c.Path(Network), routeFiles, c.Path(Stops), c.Path(Trace)))
		},
	}
}

// Export converts the trace into ns-2 mobility.
func Export() *Stage {
	return &Stage{
		Name:    NameExport,
		Kind:    KindExport,
		Scope:   ClassScope,
		Inputs:  []Input{{Artifact: Trace}},
		Outputs: []Output{{Artifact: Mobility}},
		Tools:   []sumo.Tool{sumo.TraceExporter},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.TraceExporterCommand(c.Path(Trace), c.Path(Mobility)))
		},
	}
}
