package stage

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies stage failures.
type Kind string

// Failure kinds.
const (
	KindConfiguration    Kind = "ConfigurationError"
	KindGeocode          Kind = "GeocodeError"
	KindDownload         Kind = "DownloadError"
	KindConversion       Kind = "ConversionError"
	KindExtraction       Kind = "ExtractionError"
	KindDemandGeneration Kind = "DemandGenerationError"
	KindRouting          Kind = "RoutingError"
	KindConfigWrite      Kind = "ConfigWriteError"
	KindSimulation       Kind = "SimulationError"
	KindExport           Kind = "ExportError"
)

// Error is a stage failure.
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	// Diagnostic is what the failing tool printed.
	Diagnostic string
	cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s in %s: %s", e.Kind, e.Stage, e.Msg)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the underlying error.
func (e *Error) Cause() error {
	return e.cause
}

// NewError creates a stage failure.
func NewError(kind Kind, stage, msg string, cause error) *Error {
	return &Error{
		Kind:  kind,
		Stage: stage,
		Msg:   msg,
		cause: cause,
	}
}

// IsKind reports whether err is a stage failure of the given kind.
func IsKind(err error, kind Kind) bool {
	var sErr *Error
	if !errors.As(err, &sErr) {
		return false
	}

	return sErr.Kind == kind
}

// skipError signals a stage that decided not to run.
type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return "skipped: " + e.reason
}

// Skip returns the error a stage body returns to be skipped instead of failing.
func Skip(format string, args ...interface{}) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func skipReason(err error) (string, bool) {
	var sErr *skipError
	if !errors.As(err, &sErr) {
		return "", false
	}

	return sErr.reason, true
}
