package toolexec

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "toolexec")

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	// Timeout bounds every invocation. Zero means no limit.
	Timeout time.Duration
	// DryRun logs the commands without running them.
	DryRun bool
}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner(timeout time.Duration, dryRun bool) *ExecRunner {
	return &ExecRunner{
		Timeout: timeout,
		DryRun:  dryRun,
	}
}

// Run executes cmd and waits for it. Output streams are captured separately.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	entry := log.WithField("tool", cmd.Name)
	if r.DryRun {
		entry.Infof("[dry-run] would execute: %s", cmd)

		return &Result{}, nil
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr

	entry.Debugf("executing: %s", cmd)
	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	entry.WithField("duration", time.Since(start)).Debug("tool finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1

		return res, errors.Wrapf(ctxErr, "%s interrupted", cmd.Name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()

		return res, &ExitError{Command: cmd, ExitCode: res.ExitCode}
	}
	if err != nil {
		res.ExitCode = -1

		return res, errors.Wrapf(err, "unable to start %s", cmd.Name)
	}

	return res, nil
}
