package pipeline

import (
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c <-chan error) []error {
	var errs []error
	for err := range c {
		errs = append(errs, err)
	}
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Error() < errs[j].Error()
	})

	return errs
}

func TestErrorChansConcurrentAdd(t *testing.T) {
	t.Parallel()

	ecs := &errorChans{}
	var wg sync.WaitGroup
	for _, name := range []string{"regions", "layout", "stages", "report"} {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			ecs.add(newErrorChan(name, nil))
		}()
	}
	wg.Wait()

	names := make([]string, 0, 4)
	for _, ec := range ecs.all() {
		names = append(names, ec.name)
	}
	assert.ElementsMatch(t, []string{"regions", "layout", "stages", "report"}, names)
}

func TestStepError(t *testing.T) {
	t.Parallel()

	cause := errors.New("scratch directory is read-only")
	err := error(&StepError{Step: "layout", Err: errors.Wrap(cause, "region Osmangazi")})

	assert.Equal(t, "layout: region Osmangazi: scratch directory is read-only", err.Error())
	require.ErrorIs(t, err, cause)

	var sErr *StepError
	require.ErrorAs(t, errors.Wrap(err, "pipeline run failed"), &sErr)
	assert.Equal(t, "layout", sErr.Step)
}

func TestMergeErrors(t *testing.T) {
	t.Parallel()

	errLayout := errors.New("layout failed")
	errStages := errors.New("stages failed")
	errReport := errors.New("report failed")

	tcs := map[string]struct {
		sends    map[string][]error
		expected []string
	}{
		"no step channel": {
			sends: map[string][]error{"regions": nil, "report": nil},
		},
		"closed without error": {
			sends: map[string][]error{"regions": {}, "stages": {}},
		},
		"one failing step": {
			sends:    map[string][]error{"regions": nil, "stages": {errStages, errReport}},
			expected: []string{"stages: report failed", "stages: stages failed"},
		},
		"several failing steps": {
			sends:    map[string][]error{"layout": {errLayout}, "stages": {errStages}},
			expected: []string{"layout: layout failed", "stages: stages failed"},
		},
	}

	for name, tc := range tcs {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var ecs []*errorChan
			for step, errs := range tc.sends {
				if errs == nil {
					ecs = append(ecs, newErrorChan(step, nil))

					continue
				}
				errs := errs
				c := make(chan error)
				go func() {
					defer close(c)
					for _, err := range errs {
						c <- err
					}
				}()
				ecs = append(ecs, newErrorChan(step, c))
			}

			got := drain(mergeErrors(ecs...))
			msgs := make([]string, 0, len(got))
			for _, err := range got {
				var sErr *StepError
				require.ErrorAs(t, err, &sErr)
				msgs = append(msgs, err.Error())
			}
			if tc.expected == nil {
				assert.Empty(t, msgs)

				return
			}
			assert.Equal(t, tc.expected, msgs)
		})
	}
}
