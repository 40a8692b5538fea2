// Package stagetest fakes the SUMO tools for tests: every command writes the files it would write for real.
package stagetest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
)

// OSMExtract is a minimal valid map extract.
const OSMExtract = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="stagetest">
  <node id="1" lat="40.185" lon="29.055" version="1"/>
  <node id="2" lat="40.186" lon="29.056" version="1"/>
  <way id="10" version="1"><nd ref="1"/><nd ref="2"/><tag k="highway" v="residential"/></way>
</osm>
`

// outputFlags name the arguments followed by an output path, per tool.
var outputFlags = map[string][]string{
	"netconvert":          {"-o", "--ptstop-output", "--ptline-output"},
	"netgenerate":         {"-o"},
	"polyconvert":         {"-o"},
	"duarouter":           {"--output-file"},
	"od2trips":            {"-o"},
	"sumo":                {"--fcd-output"},
	"randomTrips.py":      {"-o"},
	"ptlines2flows.py":    {"-o"},
	"edgesInDistricts.py": {"-o"},
	"route2OD.py":         {"-o"},
	"traceExporter.py":    {"--ns2mobility-output"},
}

// Failure makes a tool exit nonzero with the given error output.
type Failure struct {
	Stderr   string
	ExitCode int
}

// Fake is a fake SUMO installation.
type Fake struct {
	mu sync.Mutex
	// Failures by tool name, e.g. "sumo" or "osmGet.py".
	Failures map[string]Failure
	// Silent tools exit successfully without writing anything.
	Silent map[string]bool
	// SkipValidationRoutes makes randomTrips.py not write routes.rou.xml.
	SkipValidationRoutes bool
	// SkipNetConfig makes osmBuild.py not write osm.netccfg.
	SkipNetConfig bool
}

// New creates a fake where every tool succeeds.
func New() *Fake {
	return &Fake{Failures: map[string]Failure{}, Silent: map[string]bool{}}
}

// Fail makes tool fail.
func (f *Fake) Fail(tool, stderr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures[tool] = Failure{Stderr: stderr, ExitCode: 1}

	return f
}

// Runner returns a mock runner backed by the fake.
func (f *Fake) Runner() *toolexec.MockRunner {
	return toolexec.NewMockRunner(f.Run)
}

// ToolName returns the binary name, or the script name for python tools.
func ToolName(cmd toolexec.Command) string {
	if len(cmd.Args) > 0 && strings.HasSuffix(cmd.Args[0], ".py") {
		return filepath.Base(cmd.Args[0])
	}

	return filepath.Base(cmd.Name)
}

// Run writes the outputs of cmd. Relative paths are resolved against cmd.Dir, as the tools would.
func (f *Fake) Run(cmd toolexec.Command) (*toolexec.Result, error) {
	tool := ToolName(cmd)

	f.mu.Lock()
	failure, failed := f.Failures[tool]
	silent := f.Silent[tool]
	f.mu.Unlock()

	if failed {
		res := &toolexec.Result{Stderr: []byte(failure.Stderr), ExitCode: failure.ExitCode}

		return res, &toolexec.ExitError{Command: cmd, ExitCode: failure.ExitCode}
	}
	if silent {
		return &toolexec.Result{}, nil
	}

	var err error
	switch tool {
	case "osmGet.py":
		err = write(filepath.Join(resolve(cmd.Dir, argAfter(cmd.Args, "--output-dir")), "osm_bbox.osm.xml"), OSMExtract)
	case "osmBuild.py":
		dir := resolve(cmd.Dir, argAfter(cmd.Args, "--output-directory"))
		err = write(filepath.Join(dir, "osm.net.xml"), "<net/>\n")
		if err == nil && !f.SkipNetConfig {
			err = write(filepath.Join(dir, "osm.netccfg"), "<configuration/>\n")
		}
	case "randomTrips.py":
		net := resolve(cmd.Dir, argAfter(cmd.Args, "-n"))
		if _, statErr := os.Stat(net); statErr != nil {
			err = errors.Errorf("Error: net file %s not found", net)

			break
		}
		err = writeOutputs(tool, cmd)
		if err == nil && !f.SkipValidationRoutes {
			err = write(resolve(cmd.Dir, "routes.rou.xml"), "<routes/>\n")
		}
	default:
		err = writeOutputs(tool, cmd)
	}
	if err != nil {
		return &toolexec.Result{Stderr: []byte(err.Error()), ExitCode: 1}, &toolexec.ExitError{Command: cmd, ExitCode: 1}
	}

	return &toolexec.Result{Stdout: []byte(tool + " ok\n")}, nil
}

func writeOutputs(tool string, cmd toolexec.Command) error {
	for _, flag := range outputFlags[tool] {
		path := argAfter(cmd.Args, flag)
		if path == "" {
			continue
		}
		err := write(resolve(cmd.Dir, path), "<"+tool+"/>\n")
		if err != nil {
			return err
		}
	}

	return nil
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}

	return ""
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}

func write(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
