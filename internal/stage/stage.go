// Package stage holds the pipeline stages. Every stage invokes external tools on the artifacts of a region
// (or of a vehicle class of a region) and checks that the artifacts it promises exist afterwards.
package stage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/geo"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
)

// Scope says how often a stage runs.
type Scope int

// Scopes.
const (
	RegionScope Scope = iota
	ClassScope
)

func (s Scope) String() string {
	if s == ClassScope {
		return "class"
	}

	return "region"
}

// Input is an artifact a stage reads.
type Input struct {
	Artifact Artifact
	// Optional inputs are used when present.
	Optional bool
}

// Output is an artifact a stage writes.
type Output struct {
	Artifact Artifact
	// Optional outputs are not checked after the stage ran.
	Optional bool
}

// Stage is a pipeline step.
type Stage struct {
	Name  string
	Kind  Kind
	Scope Scope
	// Optional stages are skipped when their required inputs are missing, and their failures do not abort
	// the chain.
	Optional bool
	Inputs   []Input
	Outputs  []Output
	Tools    []sumo.Tool
	Run      func(ctx context.Context, c *Call) error
}

// Env is shared by every stage of a run.
type Env struct {
	Config   *config.Config
	Tools    *sumo.Toolbox
	Runner   toolexec.Runner
	Geocoder geo.Geocoder
	// DryRun disables every filesystem check and change. Commands are still handed to the Runner.
	DryRun bool
}

// Job is what a stage runs on.
type Job struct {
	Region config.Region
	Class  string
	Layout Layout
	Log    *logrus.Entry
}

// Status is the outcome of a stage.
type Status string

// Statuses.
const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome of one stage execution.
type Result struct {
	Stage    string
	Region   string
	Class    string
	Status   Status
	Optional bool
	// Outputs are the paths of the artifacts the stage wrote.
	Outputs  map[Artifact]string
	Reason   string
	Err      *Error
	Duration time.Duration
}

// Aborts reports whether the chain must stop after this result.
func (r Result) Aborts() bool {
	return r.Status == StatusFailed && !r.Optional
}

// Call gives a stage body access to its environment while it runs.
type Call struct {
	Env   *Env
	Job   Job
	Stage *Stage
	Log   *logrus.Entry
	last  *toolexec.Result
}

// Config returns the run configuration.
func (c *Call) Config() *config.Config {
	return c.Env.Config
}

// Path returns the canonical path of an artifact of the job.
func (c *Call) Path(a Artifact) string {
	return c.Job.Layout.Path(a)
}

// Exists reports whether the artifact is on disk.
func (c *Call) Exists(a Artifact) bool {
	return fileExists(c.Path(a))
}

// Exec runs an external tool with the stage's failure kind.
func (c *Call) Exec(ctx context.Context, cmd toolexec.Command) error {
	return c.ExecAs(ctx, c.Stage.Kind, cmd)
}

// ExecAs runs an external tool. A failure is reported with kind and what the tool printed.
func (c *Call) ExecAs(ctx context.Context, kind Kind, cmd toolexec.Command) error {
	entry := c.Log.WithField("tool", cmd.Name)
	entry.Infof("running %s", cmd)

	res, err := c.Env.Runner.Run(ctx, cmd)
	c.last = res
	if res != nil {
		if len(res.Stdout) > 0 {
			entry.Debugf("stdout: %s", res.Stdout)
		}
		if len(res.Stderr) > 0 {
			entry.Debugf("stderr: %s", res.Stderr)
		}
	}
	if err != nil {
		sErr := NewError(kind, c.Stage.Name, fmt.Sprintf("%s failed", cmd.Name), err)
		sErr.Diagnostic = res.Diagnostic()

		return sErr
	}

	return nil
}

// Fail builds a failure of the stage's kind, carrying what the last tool printed.
func (c *Call) Fail(cause error, format string, args ...interface{}) *Error {
	return c.FailAs(c.Stage.Kind, cause, format, args...)
}

// FailAs builds a failure of the given kind, carrying what the last tool printed.
func (c *Call) FailAs(kind Kind, cause error, format string, args ...interface{}) *Error {
	sErr := NewError(kind, c.Stage.Name, fmt.Sprintf(format, args...), cause)
	sErr.Diagnostic = c.last.Diagnostic()

	return sErr
}

// Move renames a tool output to its canonical path. A missing source fails the stage when required, and is
// logged otherwise.
func (c *Call) Move(src, dst string, required bool) error {
	if c.Env.DryRun {
		c.Log.Infof("[dry-run] would move %s to %s", src, dst)

		return nil
	}

	if !fileExists(src) {
		if required {
			return c.Fail(nil, "expected tool output %s not found", src)
		}
		c.Log.Warnf("%s not found, continuing without it", src)

		return nil
	}

	err := os.Rename(src, dst)
	if err != nil {
		return c.Fail(err, "unable to move %s to %s", src, dst)
	}
	c.Log.Infof("renamed %s to %s", src, dst)

	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

// Execute runs a stage on a job: it checks the inputs, runs the body, then checks the outputs.
// Failures are reported in the result, never returned.
func Execute(ctx context.Context, env *Env, st *Stage, job Job) Result {
	start := time.Now()
	entry := job.Log.WithField("stage", st.Name)
	res := Result{
		Stage:    st.Name,
		Region:   job.Layout.Region,
		Class:    job.Class,
		Optional: st.Optional,
		Outputs:  map[Artifact]string{},
	}
	finish := func(status Status) Result {
		res.Status = status
		res.Duration = time.Since(start)

		return res
	}

	if !env.DryRun {
		for _, in := range st.Inputs {
			if in.Optional || fileExists(job.Layout.Path(in.Artifact)) {
				continue
			}
			msg := fmt.Sprintf("missing input %s (%s)", in.Artifact, job.Layout.Path(in.Artifact))
			if st.Optional {
				res.Reason = msg
				entry.Warnf("skipping: %s", msg)

				return finish(StatusSkipped)
			}
			res.Err = NewError(st.Kind, st.Name, msg, nil)
			entry.WithField("kind", st.Kind).Error(res.Err.Error())

			return finish(StatusFailed)
		}
	}

	call := &Call{Env: env, Job: job, Stage: st, Log: entry}
	err := st.Run(ctx, call)
	if reason, ok := skipReason(err); ok {
		res.Reason = reason
		entry.Warnf("skipping: %s", reason)

		return finish(StatusSkipped)
	}
	if err != nil {
		res.Err = asStageError(st, err)
		if !env.DryRun {
			for _, out := range st.Outputs {
				if !out.Optional && !fileExists(job.Layout.Path(out.Artifact)) {
					res.Err.Msg += fmt.Sprintf(", missing output %s (%s)", out.Artifact, job.Layout.Path(out.Artifact))
				}
			}
		}
		entry.WithFields(logrus.Fields{
			"kind":       res.Err.Kind,
			"diagnostic": res.Err.Diagnostic,
		}).Error(res.Err.Error())

		return finish(StatusFailed)
	}

	for _, out := range st.Outputs {
		path := job.Layout.Path(out.Artifact)
		if env.DryRun || fileExists(path) {
			res.Outputs[out.Artifact] = path

			continue
		}
		if out.Optional {
			continue
		}
		res.Err = call.Fail(nil, "missing output %s (%s)", out.Artifact, path)
		entry.WithFields(logrus.Fields{
			"kind":       res.Err.Kind,
			"diagnostic": res.Err.Diagnostic,
		}).Error(res.Err.Error())

		return finish(StatusFailed)
	}

	entry.WithField("duration", time.Since(start)).Info("stage done")

	return finish(StatusDone)
}

func asStageError(st *Stage, err error) *Error {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr
	}

	return NewError(st.Kind, st.Name, "stage failed", err)
}
