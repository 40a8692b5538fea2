package variant_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/stage"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
	"github.com/askiada/go-traffic-pipeline/internal/variant"
)

func stageNames(stages []*stage.Stage) []string {
	return lo.Map(stages, func(st *stage.Stage, _ int) string { return st.Name })
}

func TestForVariant(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		region []string
		class  []string
	}{
		config.VariantOSM: {
			region: []string{"acquire", "convert"},
			class:  []string{"random-trips", "route", "write-config", "simulate", "export"},
		},
		config.VariantOSMPoly: {
			region: []string{"acquire", "convert-osmbuild", "extract-polygons"},
			class:  []string{"random-trips", "route", "write-config-poly", "simulate", "export"},
		},
		config.VariantSynthetic: {
			region: []string{"generate-network"},
			class:  []string{"random-trips", "route", "write-config-relative", "simulate", "export"},
		},
		config.VariantSyntheticGrid: {
			region: []string{"generate-network-grid"},
			class:  []string{"random-trips", "route", "write-config-relative", "simulate", "export"},
		},
		config.VariantTransit: {
			region: []string{"acquire", "convert-transit"},
			class:  []string{"transit-schedules", "random-trips-prefixed", "route", "write-config-transit", "simulate-direct", "export"},
		},
		config.VariantTAZ: {
			region: []string{"acquire", "convert-osmbuild", "extract-taz-polygons"},
			class: []string{
				"extract-districts", "random-trips", "od-matrix", "od-trips", "route-od", "write-config-poly", "simulate", "export",
			},
		},
	}

	require.Len(t, tcs, len(config.Variants()))

	for name, tc := range tcs {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := variant.ForVariant(name, stage.DefaultRegistry())
			require.NoError(t, err)
			assert.Equal(t, name, plan.Name)
			assert.Equal(t, tc.region, stageNames(plan.RegionStages))
			assert.Equal(t, tc.class, stageNames(plan.ClassStages))
			assert.Equal(t, "export", plan.Stages()[len(plan.Stages())-1].Name)
		})
	}
}

func TestForVariantUnknown(t *testing.T) {
	t.Parallel()

	_, err := variant.ForVariant("teleport", stage.DefaultRegistry())
	require.ErrorIs(t, err, variant.ErrUnknownVariant)
	assert.True(t, stage.IsKind(err, stage.KindConfiguration))
}

func TestBuildRejectsUnproducedInput(t *testing.T) {
	t.Parallel()

	_, err := variant.NewBuilder("broken", stage.DefaultRegistry()).
		Region(stage.NameAcquire, stage.NameConvertNetconvert).
		Class(stage.NameRoute, stage.NameWriteConfig).
		Build()
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindConfiguration))

	var wErr *variant.WiringError
	require.True(t, errors.As(err, &wErr))
	assert.Equal(t, stage.NameRoute, wErr.Stage)
	assert.Equal(t, stage.Trips, wErr.Artifact)
}

func TestBuildRejectsInvalidPlans(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		region []string
		class  []string
		errIs  error
	}{
		"class stage listed with region stages": {
			region: []string{stage.NameGenerateRandom, stage.NameRandomTrips},
		},
		"region stage listed with class stages": {
			region: []string{stage.NameGenerateRandom},
			class:  []string{stage.NameAcquire},
		},
		"stage listed twice": {
			region: []string{stage.NameGenerateRandom, stage.NameGenerateRandom},
		},
		"unknown stage": {
			region: []string{"teleport"},
			errIs:  stage.ErrUnknownStage,
		},
		"missing map": {
			region: []string{stage.NameConvertNetconvert},
		},
	}

	for name, tc := range tcs {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			plan, err := variant.NewBuilder(name, stage.DefaultRegistry()).Region(tc.region...).Class(tc.class...).Build()
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.True(t, stage.IsKind(err, stage.KindConfiguration))
			if tc.errIs != nil {
				assert.ErrorIs(t, err, tc.errIs)
			}
		})
	}
}

func TestOptionalInputsNeedNoProducer(t *testing.T) {
	t.Parallel()

	plan, err := variant.NewBuilder("plain", stage.DefaultRegistry()).
		Region(stage.NameGenerateRandom).
		Class(stage.NameRandomTrips, stage.NameRoute, stage.NameWriteConfigPolygons).
		Build()
	require.NoError(t, err)
	assert.Len(t, plan.ClassStages, 3)
}

func TestDownstream(t *testing.T) {
	t.Parallel()

	osm, err := variant.ForVariant(config.VariantOSM, stage.DefaultRegistry())
	require.NoError(t, err)
	taz, err := variant.ForVariant(config.VariantTAZ, stage.DefaultRegistry())
	require.NoError(t, err)

	tcs := map[string]struct {
		plan     *variant.Plan
		stage    string
		expected []string
	}{
		"acquire": {
			plan:     osm,
			stage:    stage.NameAcquire,
			expected: []string{"convert", "random-trips", "route", "write-config", "simulate", "export"},
		},
		"simulate": {
			plan:     osm,
			stage:    stage.NameSimulate,
			expected: []string{"export"},
		},
		"export": {
			plan:  osm,
			stage: stage.NameExport,
		},
		"unknown": {
			plan:  osm,
			stage: "teleport",
		},
		"districts": {
			plan:     taz,
			stage:    stage.NameExtractDistricts,
			expected: []string{"od-matrix", "od-trips", "route-od", "write-config-poly", "simulate", "export"},
		},
		"taz random trips": {
			plan:     taz,
			stage:    stage.NameRandomTrips,
			expected: []string{"od-matrix", "od-trips", "route-od", "write-config-poly", "simulate", "export"},
		},
	}

	for name, tc := range tcs {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, tc.plan.Downstream(tc.stage))
		})
	}
}

func TestTools(t *testing.T) {
	t.Parallel()

	plan, err := variant.ForVariant(config.VariantOSM, stage.DefaultRegistry())
	require.NoError(t, err)

	tools := plan.Tools()
	assert.ElementsMatch(t, []sumo.Tool{
		sumo.OsmGet, sumo.Netconvert, sumo.RandomTrips, sumo.Duarouter, sumo.Sumo, sumo.TraceExporter,
	}, tools)

	plan, err = variant.ForVariant(config.VariantTAZ, stage.DefaultRegistry())
	require.NoError(t, err)
	assert.Len(t, plan.Tools(), 10)
}

func TestWriteDOT(t *testing.T) {
	t.Parallel()

	plan, err := variant.ForVariant(config.VariantOSMPoly, stage.DefaultRegistry())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, plan.WriteDOT(&buf))

	dot := buf.String()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"acquire" -> "convert-osmbuild" [ label="map", weight=0 ];`)
	assert.Contains(t, dot, `"convert-osmbuild" -> "extract-polygons" [ label="network", weight=0 ];`)
	assert.Contains(t, dot, `"acquire" -> "extract-polygons" [ label="map", weight=0 ];`)
	assert.Contains(t, dot, `"extract-polygons" -> "write-config-poly" [ label="polygons", weight=0 ];`)
	assert.Contains(t, dot, `style="dashed"`)
}
