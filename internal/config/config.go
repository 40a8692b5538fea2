// Package config holds the pipeline configuration: what regions to process, which variant to run, the
// demand parameters shared by every region and where to find the external tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// Variant names.
const (
	VariantOSM           = "osm"
	VariantOSMPoly       = "osm-poly"
	VariantSynthetic     = "synthetic"
	VariantSyntheticGrid = "synthetic-grid"
	VariantTransit       = "transit"
	VariantTAZ           = "taz"
)

// Variants lists every known variant name.
func Variants() []string {
	return []string{VariantOSM, VariantOSMPoly, VariantSynthetic, VariantSyntheticGrid, VariantTransit, VariantTAZ}
}

// IsSynthetic reports whether the variant generates its own networks instead of downloading maps.
func IsSynthetic(variant string) bool {
	return variant == VariantSynthetic || variant == VariantSyntheticGrid
}

// Environment variables read by ApplyEnv.
const (
	EnvSumoHome     = "SUMO_HOME"
	EnvOutputDir    = "TRAFFICPIPE_OUTPUT_DIR"
	EnvNominatimURL = "NOMINATIM_URL"
)

// Config is the configuration of a pipeline run. It is loaded once, validated once, then shared read-only by
// every region.
type Config struct {
	OutputDir     string    `yaml:"output_dir"`
	Variant       string    `yaml:"variant"`
	Workers       int       `yaml:"workers"`
	Radius        float64   `yaml:"radius"`
	VerifyExtract *bool     `yaml:"verify_extract,omitempty"`
	Regions       []Region  `yaml:"regions"`
	Demand        Demand    `yaml:"demand"`
	Network       Network   `yaml:"network"`
	Synthetic     Synthetic `yaml:"synthetic"`
	Polygons      Polygons  `yaml:"polygons"`
	Export        Export    `yaml:"export"`
	Tools         Tools     `yaml:"tools"`
	Geocoder      Geocoder  `yaml:"geocoder"`
}

// Region is a place to download and simulate.
type Region struct {
	// Query is the geocoding query, e.g. "Osmangazi, Bursa, Türkiye".
	Query string `yaml:"query"`
	// Name is the file stem of every artifact of the region. Defaults to the first segment of Query.
	Name string `yaml:"name,omitempty"`
	// Radius in metres around the geocoded point. Defaults to Config.Radius.
	Radius float64 `yaml:"radius,omitempty"`
	// Lat and Lon skip geocoding when both are set.
	Lat *float64 `yaml:"lat,omitempty"`
	Lon *float64 `yaml:"lon,omitempty"`
}

// HasCoordinates reports whether the region bypasses geocoding.
func (r Region) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// Demand is shared by every region of a run.
type Demand struct {
	VehicleClasses []string `yaml:"vehicle_classes"`
	StartTime      float64  `yaml:"start_time"`
	EndTime        float64  `yaml:"end_time"`
	Mobiles        int      `yaml:"mobiles"`
}

// Period is the mean time between two departures so that Mobiles trips depart in [StartTime, EndTime].
func (d Demand) Period() float64 {
	return (d.EndTime - d.StartTime) / float64(d.Mobiles)
}

// Network configures map conversion.
type Network struct {
	// TypeFiles are netconvert type maps. Relative names are looked up in $SUMO_HOME/data/typemap.
	TypeFiles []string `yaml:"type_files"`
	// Options are appended to the netconvert command line.
	Options []string `yaml:"options"`
	// OsmBuildOptions is passed as --netconvert-options to osmBuild.py.
	OsmBuildOptions string `yaml:"osmbuild_options"`
}

// Synthetic configures generated networks.
type Synthetic struct {
	Iterations int `yaml:"iterations"`
	Count      int `yaml:"count"`
}

// Polygons configures polygon extraction.
type Polygons struct {
	// TypeFile is the polyconvert type map. Relative names are looked up in $SUMO_HOME/data/typemap.
	TypeFile string `yaml:"type_file"`
}

// Export configures the mobility trace.
type Export struct {
	Extension string `yaml:"extension"`
}

// Tools locates the external tools.
type Tools struct {
	SumoHome string `yaml:"sumo_home"`
	Python   string `yaml:"python"`
	// BinDir prefixes the SUMO binaries. Empty means they are looked up in PATH.
	BinDir string `yaml:"bin_dir"`
	// Timeout bounds every external tool invocation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// Geocoder configures place name resolution.
type Geocoder struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent"`
	CacheDB   string        `yaml:"cache_db"`
	Timeout   time.Duration `yaml:"timeout"`
}

const (
	defaultRadius            = 1000
	defaultStartTime         = 0
	defaultEndTime           = 3600
	defaultMobiles           = 100
	defaultSyntheticSize     = 5000
	defaultExtension         = ".tcl"
	defaultPython            = "python"
	defaultNominatimURL      = "https://nominatim.openstreetmap.org"
	defaultUserAgent         = "go-traffic-pipeline/1.0"
	defaultGeocoderTimeout   = 30 * time.Second
	defaultOsmBuildOptions   = "--tls.ignore-internal-junction-jam"
	defaultPolygonTypeFile   = "osmPolyconvert.typ.xml"
	defaultVehicleClass      = "passenger"
)

var defaultTransitTypeFiles = []string{"osmNetconvert.typ.xml", "osmNetconvertUrbanDe.typ.xml"}

// Load reads a YAML configuration file, then applies environment overrides and defaults.
// Unknown keys are rejected. The result is not validated yet: callers apply their own overrides first.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", path)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()

	return cfg, nil
}

// Parse decodes a YAML document.
func Parse(content []byte) (*Config, error) {
	cfg := &Config{}
	err := yaml.UnmarshalStrict(content, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode yaml")
	}

	return cfg, nil
}

// ApplyEnv fills empty fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSumoHome); ok && c.Tools.SumoHome == "" {
		c.Tools.SumoHome = v
	}
	if v, ok := lookup(EnvOutputDir); ok && c.OutputDir == "" {
		c.OutputDir = v
	}
	if v, ok := lookup(EnvNominatimURL); ok && c.Geocoder.URL == "" {
		c.Geocoder.URL = v
	}
}

// ApplyDefaults fills every unset field with its default value. Directories are made absolute: some tools
// run from a scratch directory.
func (c *Config) ApplyDefaults() {
	c.OutputDir = absPath(c.OutputDir)
	c.Tools.SumoHome = absPath(c.Tools.SumoHome)
	c.Tools.BinDir = absPath(c.Tools.BinDir)
	if c.Variant == "" {
		c.Variant = VariantOSM
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Radius == 0 {
		c.Radius = defaultRadius
	}
	if c.VerifyExtract == nil {
		verify := true
		c.VerifyExtract = &verify
	}
	if len(c.Demand.VehicleClasses) == 0 {
		c.Demand.VehicleClasses = []string{defaultVehicleClass}
	}
	if c.Demand.StartTime == 0 && c.Demand.EndTime == 0 {
		c.Demand.StartTime = defaultStartTime
		c.Demand.EndTime = defaultEndTime
	}
	if c.Demand.Mobiles == 0 {
		c.Demand.Mobiles = defaultMobiles
	}
	if c.Network.OsmBuildOptions == "" {
		c.Network.OsmBuildOptions = defaultOsmBuildOptions
	}
	if len(c.Network.TypeFiles) == 0 && c.Variant == VariantTransit {
		c.Network.TypeFiles = append([]string(nil), defaultTransitTypeFiles...)
	}
	if c.Synthetic.Iterations == 0 {
		c.Synthetic.Iterations = defaultSyntheticSize
	}
	if c.Synthetic.Count == 0 {
		c.Synthetic.Count = 1
	}
	if c.Polygons.TypeFile == "" {
		c.Polygons.TypeFile = defaultPolygonTypeFile
	}
	if c.Export.Extension == "" {
		c.Export.Extension = defaultExtension
	}
	if c.Tools.Python == "" {
		c.Tools.Python = defaultPython
	}
	if c.Geocoder.URL == "" {
		c.Geocoder.URL = defaultNominatimURL
	}
	if c.Geocoder.UserAgent == "" {
		c.Geocoder.UserAgent = defaultUserAgent
	}
	if c.Geocoder.Timeout == 0 {
		c.Geocoder.Timeout = defaultGeocoderTimeout
	}
	for i := range c.Regions {
		if c.Regions[i].Name == "" {
			c.Regions[i].Name = RegionName(c.Regions[i].Query)
		}
		if c.Regions[i].Radius == 0 {
			c.Regions[i].Radius = c.Radius
		}
	}
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return abs
}

// ShouldVerifyExtract reports whether downloaded map extracts are decoded before use.
func (c *Config) ShouldVerifyExtract() bool {
	return c.VerifyExtract == nil || *c.VerifyExtract
}

// TypeMapPath resolves a type map file name. Absolute paths and paths with a directory are returned as is,
// bare names are looked up in $SUMO_HOME/data/typemap.
func (c *Config) TypeMapPath(name string) string {
	if name == "" || filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		return name
	}

	return filepath.Join(c.Tools.SumoHome, "data", "typemap", name)
}

// PipelineRegions returns the regions to process: the configured ones, or generated ones for synthetic
// variants.
func (c *Config) PipelineRegions() []Region {
	if !IsSynthetic(c.Variant) {
		return c.Regions
	}

	kind := "randomNet"
	if c.Variant == VariantSyntheticGrid {
		kind = "gridNet"
	}

	return lo.Times(c.Synthetic.Count, func(i int) Region {
		return Region{Name: fmt.Sprintf("%d_%s_%d", i, kind, c.Synthetic.Iterations)}
	})
}

// RegionName derives a file stem from a geocoding query: the first comma separated segment without spaces.
// Any other character that is not a letter, a digit, '-' or '_' is replaced by '_'.
func RegionName(query string) string {
	first, _, _ := strings.Cut(query, ",")

	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, first)
}
