// Package toolexec runs external tools as subprocesses and captures what they print.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// NoDiagnostic is reported when a failing tool printed nothing.
const NoDiagnostic = "No error message provided."

// Command is an external tool invocation. Args are passed verbatim, no shell is involved.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// String renders the command the way it would be typed in a shell, for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}

	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return fmt.Sprintf("%q", s)
	}

	return s
}

// Result holds what a tool printed and how it exited.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Diagnostic returns the captured error stream, falling back to the output stream, falling back to
// NoDiagnostic.
func (r *Result) Diagnostic() string {
	if r == nil {
		return NoDiagnostic
	}
	if msg := bytes.TrimSpace(r.Stderr); len(msg) > 0 {
		return string(msg)
	}
	if msg := bytes.TrimSpace(r.Stdout); len(msg) > 0 {
		return string(msg)
	}

	return NoDiagnostic
}

// ExitError is returned when a tool exits with a nonzero status.
type ExitError struct {
	Command  Command
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
}

// Runner runs external tools. A nonzero exit is reported as an *ExitError together with the captured
// Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}
