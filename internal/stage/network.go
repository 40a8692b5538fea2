package stage

import (
	"context"

	"github.com/samber/lo"

	"github.com/askiada/go-traffic-pipeline/internal/geo"
	"github.com/askiada/go-traffic-pipeline/internal/mapdata"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
)

// Acquire resolves the region, downloads the map around it and moves it to its canonical path.
func Acquire() *Stage {
	return &Stage{
		Name:    NameAcquire,
		Kind:    KindDownload,
		Scope:   RegionScope,
		Outputs: []Output{{Artifact: Map}},
		Tools:   []sumo.Tool{sumo.OsmGet},
		Run:     runAcquire,
	}
}

func runAcquire(ctx context.Context, c *Call) error {
	region := c.Job.Region

	var coords geo.Coordinates
	if region.HasCoordinates() {
		coords = geo.Coordinates{Lat: *region.Lat, Lon: *region.Lon}
	} else {
		var err error
		coords, err = c.Env.Geocoder.Geocode(ctx, region.Query)
		if err != nil {
			return c.FailAs(KindGeocode, err, "unable to resolve %q", region.Query)
		}
	}

	bbox := geo.FormatBBox(geo.BoundAround(coords, region.Radius))
	c.Log.WithField("bbox", bbox).Infof("downloading map of %q", region.Query)

	err := c.Exec(ctx, c.Env.Tools.OsmGetCommand(bbox, c.Job.Layout.ScratchDir()))
	if err != nil {
		return err
	}

	downloaded := c.Job.Layout.Scratch(DownloadedMap)
	if !c.Env.DryRun && c.Config().ShouldVerifyExtract() && fileExists(downloaded) {
		sum, err := mapdata.VerifyExtract(ctx, downloaded)
		if err != nil {
			return c.Fail(err, "downloaded map is not usable")
		}
		c.Log.WithField("nodes", sum.Nodes).WithField("ways", sum.Ways).Debug("map extract verified")
	}

	return c.Move(downloaded, c.Path(Map), true)
}

// ConvertNetconvert converts the map with netconvert.
func ConvertNetconvert() *Stage {
	return &Stage{
		Name:    NameConvertNetconvert,
		Kind:    KindConversion,
		Scope:   RegionScope,
		Inputs:  []Input{{Artifact: Map}},
		Outputs: []Output{{Artifact: Network}},
		Tools:   []sumo.Tool{sumo.Netconvert},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.NetconvertCommand(sumo.NetconvertArgs{
				TypeFiles: typeFiles(c),
				OSMFile:   c.Path(Map),
				NetFile:   c.Path(Network),
				Options:   c.Config().Network.Options,
			}))
		},
	}
}

// ConvertTransit converts the map with netconvert and extracts public transport stops and lines.
func ConvertTransit() *Stage {
	return &Stage{
		Name:    NameConvertTransit,
		Kind:    KindConversion,
		Scope:   RegionScope,
		Inputs:  []Input{{Artifact: Map}},
		Outputs: []Output{{Artifact: Network}, {Artifact: Stops}, {Artifact: Lines}},
		Tools:   []sumo.Tool{sumo.Netconvert},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.NetconvertCommand(sumo.NetconvertArgs{
				TypeFiles: typeFiles(c),
				OSMFile:   c.Path(Map),
				NetFile:   c.Path(Network),
				StopsFile: c.Path(Stops),
				LinesFile: c.Path(Lines),
				Options:   c.Config().Network.Options,
			}))
		},
	}
}

func typeFiles(c *Call) []string {
	return lo.Map(c.Config().Network.TypeFiles, func(name string, _ int) string {
		return c.Config().TypeMapPath(name)
	})
}

// ConvertOsmBuild converts the map with osmBuild.py, which writes fixed names into the scratch directory.
func ConvertOsmBuild() *Stage {
	return &Stage{
		Name:    NameConvertOsmBuild,
		Kind:    KindConversion,
		Scope:   RegionScope,
		Inputs:  []Input{{Artifact: Map}},
		Outputs: []Output{{Artifact: Network}, {Artifact: NetConfig, Optional: true}},
		Tools:   []sumo.Tool{sumo.OsmBuild},
		Run: func(ctx context.Context, c *Call) error {
			layout := c.Job.Layout
			err := c.Exec(ctx, c.Env.Tools.OsmBuildCommand(c.Path(Map), c.Config().Network.OsmBuildOptions, layout.ScratchDir()))
			if err != nil {
				return err
			}

			err = c.Move(layout.Scratch(BuiltNetwork), c.Path(Network), true)
			if err != nil {
				return err
			}

			return c.Move(layout.Scratch(BuiltNetConfig), c.Path(NetConfig), false)
		},
	}
}

// GenerateNetwork generates a random network, laid out on a grid when grid is set.
func GenerateNetwork(name string, grid bool) *Stage {
	return &Stage{
		Name:    name,
		Kind:    KindConversion,
		Scope:   RegionScope,
		Outputs: []Output{{Artifact: Network}},
		Tools:   []sumo.Tool{sumo.Netgenerate},
		Run: func(ctx context.Context, c *Call) error {
			return c.Exec(ctx, c.Env.Tools.NetgenerateCommand(c.Path(Network), c.Config().Synthetic.Iterations, grid))
		},
	}
}
