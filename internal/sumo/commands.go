package sumo

import (
	"strconv"
	"strings"

	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
)

// FormatTime renders a simulation time the shortest way: 3600 gives "3600", 12.5 gives "12.5".
func FormatTime(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPeriod renders a departure period as a float that always has a fractional part: 36 gives "36.0".
func FormatPeriod(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}

	return s
}

// ClassPrefix is the three letter prefix derived from a vehicle class, e.g. "pas" for "passenger".
func ClassPrefix(class string) string {
	if len(class) <= 3 {
		return class
	}

	return class[:3]
}

// OsmGetCommand downloads the map of bbox into outDir/osm_bbox.osm.xml.
func (t *Toolbox) OsmGetCommand(bbox, outDir string) toolexec.Command {
	return t.Command(OsmGet, "--bbox="+bbox, "--output-dir", outDir)
}

// NetconvertArgs configures a netconvert run.
type NetconvertArgs struct {
	TypeFiles []string
	OSMFile   string
	NetFile   string
	// StopsFile and LinesFile request public transport outputs when set.
	StopsFile string
	LinesFile string
	Options   []string
}

// NetconvertCommand converts an OSM extract into a SUMO network.
func (t *Toolbox) NetconvertCommand(a NetconvertArgs) toolexec.Command {
	var args []string
	if len(a.TypeFiles) > 0 {
		args = append(args, "--type-files", strings.Join(a.TypeFiles, ","))
	}
	args = append(args, "--osm-files", a.OSMFile, "-o", a.NetFile)
	if a.StopsFile != "" || a.LinesFile != "" {
		args = append(args,
			"--osm.stop-output.length", "20",
			"--ptstop-output", a.StopsFile,
			"--ptline-output", a.LinesFile,
			"--geometry.remove",
			"--roundabouts.guess",
			"--ramps.guess",
			"--junctions.join",
			"--tls.guess-signals",
			"--tls.discard-simple",
			"--tls.join",
		)
	}
	args = append(args, a.Options...)

	return t.Command(Netconvert, args...)
}

// OsmBuildCommand builds osm.net.xml and osm.netccfg into outDir.
func (t *Toolbox) OsmBuildCommand(osmFile, netconvertOptions, outDir string) toolexec.Command {
	return t.Command(OsmBuild,
		"--osm-file", osmFile,
		"--netconvert-options="+netconvertOptions,
		"--output-directory", outDir,
	)
}

// NetgenerateCommand generates a random network, laid out on a grid when grid is set.
func (t *Toolbox) NetgenerateCommand(netFile string, iterations int, grid bool) toolexec.Command {
	args := []string{
		"--rand",
		"-o", netFile,
		"--rand.iterations=" + strconv.Itoa(iterations),
		"-j", "traffic_light",
		"--random",
	}
	if grid {
		args = append(args, "--rand.grid")
	}

	return t.Command(Netgenerate, args...)
}

// PolyconvertCommand extracts polygons of the map. taz restricts the output to traffic assignment zones.
func (t *Toolbox) PolyconvertCommand(netFile, osmFile, typeFile, outFile string, taz bool) toolexec.Command {
	args := []string{
		"--net-file", netFile,
		"--osm-files", osmFile,
		"--type-file", typeFile,
		"-o", outFile,
	}
	if taz {
		args = append(args, "--type", "taz")
	}

	return t.Command(Polyconvert, args...)
}

// EdgesInDistrictsCommand assigns the edges usable by class to the zones of polyFile.
func (t *Toolbox) EdgesInDistrictsCommand(netFile, polyFile, tazFile, class string) toolexec.Command {
	return t.Command(EdgesInDistricts,
		"-n", netFile,
		"-t", polyFile,
		"-o", tazFile,
		"-l", class,
		"--complete",
	)
}

// RandomTripsArgs configures a randomTrips.py run.
type RandomTripsArgs struct {
	NetFile string
	Begin   float64
	End     float64
	Period  float64
	OutFile string
	Class   string
	// Prefix is prepended to every trip id when set.
	Prefix string
}

// RandomTripsCommand generates random validated trips. The validation routes are written to routes.rou.xml
// in the working directory.
func (t *Toolbox) RandomTripsCommand(a RandomTripsArgs) toolexec.Command {
	args := []string{
		"-n", a.NetFile,
		"-b", FormatTime(a.Begin),
		"-e", FormatTime(a.End),
		"-o", a.OutFile,
		"-p", FormatPeriod(a.Period),
		"--vehicle-class", a.Class,
	}
	if a.Prefix != "" {
		args = append(args, "--prefix", a.Prefix)
	}
	args = append(args, "--random", "--random-depart", "--validate")

	return t.Command(RandomTrips, args...)
}

// PTLinesArgs configures a ptlines2flows.py run.
type PTLinesArgs struct {
	NetFile   string
	StopsFile string
	LinesFile string
	OutFile   string
	Class     string
	Begin     float64
	End       float64
	Period    float64
}

// PTLines2FlowsCommand generates public transport flows following the OSM routes.
func (t *Toolbox) PTLines2FlowsCommand(a PTLinesArgs) toolexec.Command {
	return t.Command(PTLines2Flows,
		"-n", a.NetFile,
		"-s", a.StopsFile,
		"-l", a.LinesFile,
		"-o", a.OutFile,
		"--types", a.Class,
		"--vtype-prefix", ClassPrefix(a.Class),
		"-b", FormatTime(a.Begin),
		"-e", FormatTime(a.End),
		"-p", FormatPeriod(a.Period),
		"--use-osm-routes",
	)
}

// Route2ODCommand aggregates trips into a zone to zone relation.
func (t *Toolbox) Route2ODCommand(tripFile, tazFile, outFile string) toolexec.Command {
	return t.Command(Route2OD, "-r", tripFile, "-a", tazFile, "-o", outFile)
}

// OD2TripsCommand expands a zone relation back into trips.
func (t *Toolbox) OD2TripsCommand(odFile, tazFile string, begin, end float64, outFile, class string) toolexec.Command {
	return t.Command(OD2Trips,
		"--tazrelation-files", odFile,
		"--taz-files", tazFile,
		"-b", FormatTime(begin),
		"-e", FormatTime(end),
		"-o", outFile,
		"--vtype", class,
		"--prefix", ClassPrefix(class),
	)
}

// DuarouterCommand computes routes for trips.
func (t *Toolbox) DuarouterCommand(netFile, tripFile, outFile string) toolexec.Command {
	return t.Command(Duarouter, "--net-file", netFile, "--route-files", tripFile, "--output-file", outFile)
}

// SumoConfigCommand runs a simulation described by a run configuration.
func (t *Toolbox) SumoConfigCommand(configFile, traceFile string) toolexec.Command {
	return t.Command(Sumo, "-c", configFile, "--fcd-output", traceFile)
}

// SumoDirectCommand runs a simulation from its inputs, without a run configuration.
func (t *Toolbox) SumoDirectCommand(netFile string, routeFiles []string, additionalFile, traceFile string) toolexec.Command {
	args := []string{"-n", netFile, "-r", strings.Join(routeFiles, ",")}
	if additionalFile != "" {
		args = append(args, "-a", additionalFile)
	}
	args = append(args, "--fcd-output", traceFile)

	return t.Command(Sumo, args...)
}

// TraceExporterCommand converts a floating car trace to ns-2 mobility.
func (t *Toolbox) TraceExporterCommand(traceFile, outFile string) toolexec.Command {
	return t.Command(TraceExporter, "--fcd-input", traceFile, "--ns2mobility-output", outFile)
}
