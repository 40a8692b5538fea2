// Package sumo knows where the SUMO tools live and how to call them.
package sumo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
)

// Tool is an external tool: either a SUMO binary or a python script under $SUMO_HOME/tools.
type Tool struct {
	Binary string
	Script []string
}

func (t Tool) String() string {
	if t.Binary != "" {
		return t.Binary
	}

	return strings.Join(t.Script, "/")
}

// Known tools.
var (
	Netconvert  = Tool{Binary: "netconvert"}
	Netgenerate = Tool{Binary: "netgenerate"}
	Polyconvert = Tool{Binary: "polyconvert"}
	Duarouter   = Tool{Binary: "duarouter"}
	OD2Trips    = Tool{Binary: "od2trips"}
	Sumo        = Tool{Binary: "sumo"}

	OsmGet           = Tool{Script: []string{"osmGet.py"}}
	OsmBuild         = Tool{Script: []string{"osmBuild.py"}}
	RandomTrips      = Tool{Script: []string{"randomTrips.py"}}
	PTLines2Flows    = Tool{Script: []string{"ptlines2flows.py"}}
	EdgesInDistricts = Tool{Script: []string{"edgesInDistricts.py"}}
	Route2OD         = Tool{Script: []string{"route", "route2OD.py"}}
	TraceExporter    = Tool{Script: []string{"traceExporter.py"}}
)

// Toolbox resolves tool locations and builds their command lines.
type Toolbox struct {
	home   string
	python string
	binDir string
}

// New creates a Toolbox from the tool configuration.
func New(cfg config.Tools) *Toolbox {
	return &Toolbox{
		home:   cfg.SumoHome,
		python: cfg.Python,
		binDir: cfg.BinDir,
	}
}

// Path returns the location of a tool: the binary name, prefixed by the configured bin dir, or the
// absolute path of the script.
func (t *Toolbox) Path(tool Tool) string {
	if tool.Binary != "" {
		if t.binDir == "" {
			return tool.Binary
		}

		return filepath.Join(t.binDir, tool.Binary)
	}

	return filepath.Join(append([]string{t.home, "tools"}, tool.Script...)...)
}

// Command builds the invocation of tool with args. Scripts run through the python interpreter.
func (t *Toolbox) Command(tool Tool, args ...string) toolexec.Command {
	if tool.Binary != "" {
		return toolexec.Command{Name: t.Path(tool), Args: args}
	}

	return toolexec.Command{
		Name: t.python,
		Args: append([]string{t.Path(tool)}, args...),
	}
}

// MissingToolsError lists the tools that could not be found.
type MissingToolsError struct {
	Missing []string
}

func (e *MissingToolsError) Error() string {
	return "missing external tools: " + strings.Join(e.Missing, ", ")
}

// Check verifies that every tool can be found, and the python interpreter when a script is needed.
func (t *Toolbox) Check(tools ...Tool) error {
	var missing []string
	pythonChecked := false

	for _, tool := range tools {
		if tool.Binary != "" {
			if _, err := exec.LookPath(t.Path(tool)); err != nil {
				missing = append(missing, t.Path(tool))
			}

			continue
		}

		if !pythonChecked {
			pythonChecked = true
			if _, err := exec.LookPath(t.python); err != nil {
				missing = append(missing, t.python)
			}
		}
		if _, err := os.Stat(t.Path(tool)); err != nil {
			missing = append(missing, t.Path(tool))
		}
	}

	if len(missing) > 0 {
		return errors.WithStack(&MissingToolsError{Missing: missing})
	}

	return nil
}
