package driver_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/driver"
	"github.com/askiada/go-traffic-pipeline/internal/geo"
	"github.com/askiada/go-traffic-pipeline/internal/stage"
	"github.com/askiada/go-traffic-pipeline/internal/stage/stagetest"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
	"github.com/askiada/go-traffic-pipeline/internal/variant"
)

var bursa = geo.StaticGeocoder{
	"Osmangazi, Bursa, Türkiye": {Lat: 40.1885, Lon: 29.0610},
	"Gemlik, Bursa":             {Lat: 40.4311, Lon: 29.1575},
	"Mudanya, Bursa":            {Lat: 40.3753, Lon: 28.8822},
	"Inegol, Bursa":             {Lat: 40.0781, Lon: 29.5133},
}

type fixture struct {
	cfg    *config.Config
	fake   *stagetest.Fake
	runner *toolexec.MockRunner
	env    *stage.Env
}

func newFixture(t *testing.T, variantName string, classes []string, queries ...string) *fixture {
	t.Helper()

	cfg := &config.Config{
		OutputDir: t.TempDir(),
		Variant:   variantName,
		Demand:    config.Demand{VehicleClasses: classes},
		Tools:     config.Tools{SumoHome: t.TempDir()},
	}
	for _, q := range queries {
		cfg.Regions = append(cfg.Regions, config.Region{Query: q})
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	fake := stagetest.New()
	runner := fake.Runner()

	return &fixture{
		cfg:    cfg,
		fake:   fake,
		runner: runner,
		env: &stage.Env{
			Config:   cfg,
			Tools:    sumo.New(cfg.Tools),
			Runner:   runner,
			Geocoder: bursa,
		},
	}
}

func (f *fixture) run(t *testing.T, workers int) *driver.Summary {
	t.Helper()

	plan, err := variant.ForVariant(f.cfg.Variant, stage.DefaultRegistry())
	require.NoError(t, err)

	summary, err := driver.Run(context.Background(), driver.Options{Plan: plan, Env: f.env, Workers: workers})
	require.NoError(t, err)

	return summary
}

func (f *fixture) tools() []string {
	return lo.Map(f.runner.Find(func(toolexec.Command) bool { return true }), func(cmd toolexec.Command, _ int) string {
		return stagetest.ToolName(cmd)
	})
}

func (f *fixture) output(name string) string {
	return filepath.Join(f.cfg.OutputDir, name)
}

func TestRunOsmangazi(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSM, nil, "Osmangazi, Bursa, Türkiye")
	summary := f.run(t, 1)

	require.True(t, summary.OK(), summary.String())
	require.Len(t, summary.Reports, 2)
	assert.Equal(t, 1, summary.Completed())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "Osmangazi", summary.Reports[0].Region)
	assert.Empty(t, summary.Reports[0].Class)
	assert.Equal(t, "passenger", summary.Reports[1].Class)

	assert.Equal(t, []string{"osmGet.py", "netconvert", "randomTrips.py", "duarouter", "sumo", "traceExporter.py"}, f.tools())
	for _, name := range []string{
		"Osmangazi.osm.xml",
		"Osmangazi.net.xml",
		"Osmangazi_passenger_trips.rou.xml",
		"Osmangazi_passenger_trips_routes.rou.xml",
		"Osmangazi_passenger_dua.rou.xml",
		"Osmangazi_passenger.sumocfg",
		"Osmangazi_passenger_trace.xml",
		"Osmangazi_passenger_trace.tcl",
	} {
		assert.FileExists(t, f.output(name))
	}

	randomTrips := f.runner.Find(func(cmd toolexec.Command) bool { return stagetest.ToolName(cmd) == "randomTrips.py" })
	require.Len(t, randomTrips, 1)
	assert.Subset(t, randomTrips[0].Args, []string{"-b", "0", "-e", "3600", "-p", "36.0"})

	content, err := os.ReadFile(f.output("Osmangazi_passenger.sumocfg"))
	require.NoError(t, err)
	assert.Equal(t, "<configuration>\n<input>\n"+
		`<net-file value="`+f.output("Osmangazi.net.xml")+`"/>`+"\n"+
		`<route-files value="`+f.output("Osmangazi_passenger_dua.rou.xml")+`"/>`+"\n"+
		"</input>\n</configuration>\n", string(content))
}

func TestRunAbortStopsClassChain(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSM, []string{"passenger", "bicycle"}, "Osmangazi, Bursa, Türkiye")
	f.fake.Fail("duarouter", "Error: No connection between edge '1' and edge '2' found.")

	summary := f.run(t, 1)
	require.False(t, summary.OK())
	require.Len(t, summary.Reports, 3)
	assert.Zero(t, summary.Completed())

	for _, rep := range summary.Aborted() {
		assert.Equal(t, stage.NameRoute, rep.AbortedAt)
		assert.Equal(t, []string{"write-config", "simulate", "export"}, rep.NotRun)
		status, ran := rep.Status(stage.NameRandomTrips)
		assert.True(t, ran)
		assert.Equal(t, stage.StatusDone, status)
		_, ran = rep.Status(stage.NameSimulate)
		assert.False(t, ran)
	}

	failures := summary.Failures()
	require.Len(t, failures, 2)
	for _, sErr := range failures {
		assert.Equal(t, stage.KindRouting, sErr.Kind)
		assert.Equal(t, "Error: No connection between edge '1' and edge '2' found.", sErr.Diagnostic)
	}

	assert.NotContains(t, f.tools(), "sumo")
	assert.NotContains(t, f.tools(), "traceExporter.py")
	assert.NoFileExists(t, f.output("Osmangazi_passenger.sumocfg"))
}

func TestRunRegionAbortSkipsClasses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSM, nil, "Atlantis", "Gemlik, Bursa")
	summary := f.run(t, 1)

	require.Len(t, summary.Reports, 3)
	atlantis := summary.Reports[0]
	assert.Equal(t, "Atlantis", atlantis.Region)
	assert.Equal(t, stage.NameAcquire, atlantis.AbortedAt)
	assert.Equal(t, []string{"convert"}, atlantis.NotRun)
	res, ok := atlantis.Failure()
	require.True(t, ok)
	assert.Equal(t, stage.KindGeocode, res.Err.Kind)

	assert.Equal(t, "Gemlik", summary.Reports[1].Region)
	assert.False(t, summary.Reports[1].Aborted())
	assert.Equal(t, "Gemlik", summary.Reports[2].Region)
	assert.Equal(t, 1, summary.Completed())
	assert.Len(t, summary.Aborted(), 1)
}

func TestRunWorkers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSMPoly, []string{"passenger", "truck"},
		"Osmangazi, Bursa, Türkiye", "Gemlik, Bursa", "Mudanya, Bursa", "Inegol, Bursa")
	summary := f.run(t, 3)

	require.True(t, summary.OK(), summary.String())
	require.Len(t, summary.Reports, 12)
	assert.Equal(t, 8, summary.Completed())

	expected := []string{}
	for _, region := range []string{"Osmangazi", "Gemlik", "Mudanya", "Inegol"} {
		expected = append(expected, region, region+"/passenger", region+"/truck")
	}
	actual := lo.Map(summary.Reports, func(r driver.Report, _ int) string {
		if r.Class == "" {
			return r.Region
		}

		return r.Region + "/" + r.Class
	})
	assert.Equal(t, expected, actual)

	for i, region := range []string{"Osmangazi", "Gemlik", "Mudanya", "Inegol"} {
		assert.FileExists(t, f.output(region+".net.xml"))
		assert.FileExists(t, f.output(region+".netccfg"))
		assert.FileExists(t, f.output(region+"_truck_trace.tcl"))
		status, ran := summary.Reports[3*i].Status(stage.NameExtractPolygons)
		assert.True(t, ran)
		assert.Equal(t, stage.StatusSkipped, status)
	}
}

func TestRunTAZWithoutTypeMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantTAZ, nil, "Osmangazi, Bursa, Türkiye")
	summary := f.run(t, 1)

	require.Len(t, summary.Reports, 2)
	region := summary.Reports[0]
	assert.False(t, region.Aborted())
	status, _ := region.Status(stage.NameExtractTAZPolygons)
	assert.Equal(t, stage.StatusSkipped, status)

	class := summary.Reports[1]
	status, _ = class.Status(stage.NameExtractDistricts)
	assert.Equal(t, stage.StatusSkipped, status)
	assert.Equal(t, stage.NameODMatrix, class.AbortedAt)
	res, ok := class.Failure()
	require.True(t, ok)
	assert.Equal(t, stage.KindDemandGeneration, res.Err.Kind)
	assert.Contains(t, res.Err.Msg, "missing input districts")

	assert.NotContains(t, f.tools(), "polyconvert")
	assert.NotContains(t, f.tools(), "route2OD.py")
}

func TestRunTAZ(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantTAZ, []string{"bus"}, "Osmangazi, Bursa, Türkiye")
	typeMap := f.cfg.TypeMapPath(f.cfg.Polygons.TypeFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(typeMap), 0o755))
	require.NoError(t, os.WriteFile(typeMap, []byte("<polygonTypes/>"), 0o600))

	summary := f.run(t, 1)
	require.True(t, summary.OK(), summary.String())

	assert.Equal(t, []string{
		"osmGet.py", "osmBuild.py", "polyconvert",
		"edgesInDistricts.py", "randomTrips.py", "route2OD.py", "od2trips", "duarouter", "sumo", "traceExporter.py",
	}, f.tools())

	content, err := os.ReadFile(f.output("Osmangazi_bus.sumocfg"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `<additional-files value="`+f.output("Osmangazi.poly.xml")+`"/>`)
}

func TestRunTransit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantTransit, []string{"bus"}, "Osmangazi, Bursa, Türkiye")
	summary := f.run(t, 1)
	require.True(t, summary.OK(), summary.String())

	sumoCalls := f.runner.Find(func(cmd toolexec.Command) bool { return stagetest.ToolName(cmd) == "sumo" })
	require.Len(t, sumoCalls, 1)
	assert.Equal(t, []string{
		"-n", f.output("Osmangazi.net.xml"),
		"-r", f.output("Osmangazi_bus_dua.rou.xml") + "," + f.output("Osmangazi_bus.flows.rou.xml"),
		"-a", f.output("Osmangazi.stop.xml"),
		"--fcd-output", f.output("Osmangazi_bus_trace.xml"),
	}, sumoCalls[0].Args)

	trips := f.runner.Find(func(cmd toolexec.Command) bool { return stagetest.ToolName(cmd) == "randomTrips.py" })
	require.Len(t, trips, 1)
	assert.Subset(t, trips[0].Args, []string{"--prefix", "tripbus"})
}

func TestRunSynthetic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantSyntheticGrid, nil)
	f.cfg.Synthetic.Count = 2

	summary := f.run(t, 2)
	require.True(t, summary.OK(), summary.String())
	require.Len(t, summary.Reports, 4)
	assert.Equal(t, "0_gridNet_5000", summary.Reports[0].Region)
	assert.Equal(t, "1_gridNet_5000", summary.Reports[2].Region)

	content, err := os.ReadFile(f.output("1_gridNet_5000_passenger.sumocfg"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `<net-file value="1_gridNet_5000.net.xml"/>`)
	assert.Contains(t, string(content), `<route-files value="1_gridNet_5000_passenger_dua.rou.xml"/>`)
	assert.Len(t, lo.Filter(f.tools(), func(name string, _ int) bool { return name == "netgenerate" }), 2)
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSM, nil, "Osmangazi, Bursa, Türkiye")
	f.runner.Factory = nil
	f.env.DryRun = true

	summary := f.run(t, 1)
	require.True(t, summary.OK(), summary.String())
	assert.Len(t, f.tools(), 6)

	entries, err := os.ReadDir(f.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunGraph(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.VariantOSM, nil, "Osmangazi, Bursa, Türkiye")
	plan, err := variant.ForVariant(f.cfg.Variant, stage.DefaultRegistry())
	require.NoError(t, err)

	graphFile := filepath.Join(t.TempDir(), "run.dot")
	summary, err := driver.Run(context.Background(), driver.Options{Plan: plan, Env: f.env, GraphFile: graphFile})
	require.NoError(t, err)
	assert.True(t, summary.OK())

	content, err := os.ReadFile(graphFile)
	require.NoError(t, err)
	for _, step := range []string{"regions", "layout", "stages", "report"} {
		assert.Contains(t, string(content), fmt.Sprintf("%q", step))
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	_, err := driver.Run(context.Background(), driver.Options{})
	require.ErrorIs(t, err, driver.ErrMissingOptions)

	f := newFixture(t, config.VariantOSM, nil, "Osmangazi, Bursa, Türkiye")
	plan, err := variant.ForVariant(f.cfg.Variant, stage.DefaultRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = driver.Run(ctx, driver.Options{Plan: plan, Env: f.env})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReportString(t *testing.T) {
	t.Parallel()

	rep := driver.Report{
		Region: "Osmangazi",
		Class:  "passenger",
		Results: []stage.Result{
			{Stage: "random-trips", Status: stage.StatusDone},
			{Stage: "simulate", Status: stage.StatusFailed, Err: stage.NewError(stage.KindSimulation, "simulate", "sumo failed", nil)},
		},
		AbortedAt: "simulate",
		NotRun:    []string{"export"},
	}
	assert.Equal(t, "Osmangazi/passenger: 1 done, 0 skipped, aborted at simulate (SimulationError)", rep.String())

	summary := &driver.Summary{Reports: []driver.Report{{Region: "Osmangazi"}, rep}}
	assert.Equal(t, "Osmangazi: 0 done, 0 skipped\n"+rep.String(), summary.String())
	assert.False(t, summary.OK())
	assert.Zero(t, summary.Completed())
}
