package stage

import (
	"path/filepath"
	"strings"
)

// Artifact is a kind of file passed between stages.
type Artifact string

// Region artifacts.
const (
	Map       Artifact = "map"
	Network   Artifact = "network"
	NetConfig Artifact = "netccfg"
	Stops     Artifact = "stops"
	Lines     Artifact = "lines"
	Polygons  Artifact = "polygons"
)

// Class artifacts.
const (
	Districts        Artifact = "districts"
	Trips            Artifact = "trips"
	ValidationRoutes Artifact = "validation-routes"
	Flows            Artifact = "flows"
	ODMatrix         Artifact = "od-matrix"
	ODTrips          Artifact = "od-trips"
	Routes           Artifact = "routes"
	RunConfig        Artifact = "run-config"
	Trace            Artifact = "trace"
	Mobility         Artifact = "mobility"
)

var classSuffixes = map[Artifact]string{
	Districts:        ".taz.xml",
	Trips:            "_trips.rou.xml",
	Flows:            ".flows.rou.xml",
	ODMatrix:         "_od.xml",
	ODTrips:          "_od_trips.rou.xml",
	Routes:           "_dua.rou.xml",
	RunConfig:        ".sumocfg",
	Trace:            "_trace.xml",
	ValidationRoutes: "",
	Mobility:         "",
}

var regionSuffixes = map[Artifact]string{
	Map:       ".osm.xml",
	Network:   ".net.xml",
	NetConfig: ".netccfg",
	Stops:     ".stop.xml",
	Lines:     ".ptlines.xml",
	Polygons:  ".poly.xml",
}

// PerClass reports whether the artifact exists once per vehicle class.
func (a Artifact) PerClass() bool {
	_, ok := classSuffixes[a]

	return ok
}

// Fixed names written by the tools into the scratch directory.
const (
	DownloadedMap    = "osm_bbox.osm.xml"
	BuiltNetwork     = "osm.net.xml"
	BuiltNetConfig   = "osm.netccfg"
	ValidationOutput = "routes.rou.xml"
)

const scratchRoot = ".work"

// Layout maps artifacts to paths for one region, and one class when Class is set.
type Layout struct {
	OutputDir string
	Region    string
	Class     string
	// Extension of the mobility trace, e.g. ".tcl".
	Extension string
}

// NewLayout creates the layout of a region.
func NewLayout(outputDir, region, extension string) Layout {
	return Layout{
		OutputDir: outputDir,
		Region:    region,
		Extension: extension,
	}
}

// ForClass returns the layout of a vehicle class of the same region.
func (l Layout) ForClass(class string) Layout {
	l.Class = class

	return l
}

// Path returns the canonical path of an artifact. Class artifacts have no path when Class is empty.
func (l Layout) Path(a Artifact) string {
	if suffix, ok := regionSuffixes[a]; ok {
		return filepath.Join(l.OutputDir, l.Region+suffix)
	}
	if l.Class == "" {
		return ""
	}

	stem := l.Region + "_" + l.Class
	switch a {
	case ValidationRoutes:
		return strings.TrimSuffix(l.Path(Trips), ".rou.xml") + "_routes.rou.xml"
	case Mobility:
		return filepath.Join(l.OutputDir, stem+"_trace"+l.Extension)
	}

	suffix, ok := classSuffixes[a]
	if !ok {
		return ""
	}

	return filepath.Join(l.OutputDir, stem+suffix)
}

// ScratchDir is where the tools with fixed output names write. Each region has its own.
func (l Layout) ScratchDir() string {
	return filepath.Join(l.OutputDir, scratchRoot, l.Region)
}

// Scratch returns the path of name inside the scratch directory.
func (l Layout) Scratch(name string) string {
	return filepath.Join(l.ScratchDir(), name)
}
