package driver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-traffic-pipeline/internal/stage"
)

// ErrMissingOptions is returned when Run is called without a plan or an environment.
var ErrMissingOptions = errors.New("plan and environment must be set")

// Report is the outcome of one chain: the region stages of a region, or the class stages of one of its
// vehicle classes.
type Report struct {
	Region string
	// Class is empty for the region chain.
	Class   string
	Results []stage.Result
	// AbortedAt names the stage that stopped the chain.
	AbortedAt string
	NotRun    []string

	regionIndex int
	classIndex  int
}

// Aborted reports whether the chain stopped before its last stage.
func (r Report) Aborted() bool {
	return r.AbortedAt != ""
}

// Status returns the status of the named stage, or false if it did not run.
func (r Report) Status(name string) (stage.Status, bool) {
	res, ok := lo.Find(r.Results, func(res stage.Result) bool { return res.Stage == name })

	return res.Status, ok
}

// Failure returns the result that aborted the chain.
func (r Report) Failure() (stage.Result, bool) {
	if !r.Aborted() {
		return stage.Result{}, false
	}

	return r.Results[len(r.Results)-1], true
}

func (r Report) String() string {
	scope := r.Region
	if r.Class != "" {
		scope += "/" + r.Class
	}
	counts := lo.CountValuesBy(r.Results, func(res stage.Result) stage.Status { return res.Status })
	msg := fmt.Sprintf("%s: %d done, %d skipped", scope, counts[stage.StatusDone], counts[stage.StatusSkipped])
	if res, ok := r.Failure(); ok {
		msg += fmt.Sprintf(", aborted at %s (%s)", r.AbortedAt, res.Err.Kind)
	}

	return msg
}

// Summary gathers the reports of a run, region chain first, then classes in configuration order.
type Summary struct {
	RunID   string
	Variant string
	Reports []Report
}

// Aborted returns the reports of the chains that did not complete.
func (s *Summary) Aborted() []Report {
	return lo.Filter(s.Reports, func(r Report, _ int) bool { return r.Aborted() })
}

// Completed returns the number of class chains that exported a mobility trace.
func (s *Summary) Completed() int {
	return lo.CountBy(s.Reports, func(r Report) bool { return r.Class != "" && !r.Aborted() })
}

// Failures returns the error of every aborted chain.
func (s *Summary) Failures() []*stage.Error {
	return lo.FilterMap(s.Aborted(), func(r Report, _ int) (*stage.Error, bool) {
		res, ok := r.Failure()
		if !ok {
			return nil, false
		}

		return res.Err, true
	})
}

// OK reports whether every chain completed.
func (s *Summary) OK() bool {
	return len(s.Aborted()) == 0
}

func (s *Summary) String() string {
	lines := lo.Map(s.Reports, func(r Report, _ int) string { return r.String() })

	return strings.Join(lines, "\n")
}

func (s *Summary) log(entry *logrus.Entry) {
	for _, r := range s.Reports {
		if r.Aborted() {
			entry.Warn(r.String())

			continue
		}
		entry.Info(r.String())
	}
	entry.WithFields(logrus.Fields{
		"completed": s.Completed(),
		"aborted":   len(s.Aborted()),
	}).Info("run finished")
}
