package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/model"
)

func inputOf(ctx context.Context, total int) *model.Step[int] {
	input := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "input"}}
	go func() {
		defer close(input.Output)
		for i := 0; i < total; i++ {
			select {
			case <-ctx.Done():
				return
			case input.Output <- i:
			}
		}
	}()

	return input
}

func drainStep[T any](output *model.Step[T]) <-chan []T {
	done := make(chan []T, 1)
	go func() {
		var res []T
		for out := range output.Output {
			res = append(res, out)
		}
		done <- res
	}()

	return done
}

func TestEmit(t *testing.T) {
	t.Parallel()

	output := &model.Step[string]{Output: make(chan string, 1)}
	require.NoError(t, emit(context.Background(), output, "Gemlik"))
	assert.Equal(t, "Gemlik", <-output.Output)
}

func TestEmitCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// nobody reads the output
	output := &model.Step[string]{Output: make(chan string)}
	assert.ErrorIs(t, emit(ctx, output, "Gemlik"), context.Canceled)
}

func TestRunStep(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		concurrent int
	}{
		"sequential":     {concurrent: 1},
		"sequential v2":  {concurrent: 0},
		"concurrent 2":   {concurrent: 2},
		"concurrent 100": {concurrent: 100},
	}

	for name, tc := range tcs {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			output := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "double", Concurrent: tc.concurrent}}
			got := drainStep(output)

			err := runStep(ctx, &Pipeline{}, inputOf(ctx, 10), output, func(_ context.Context, i int) ([]int, error) {
				return []int{i, i}, nil
			})
			close(output.Output)
			require.NoError(t, err)
			assert.ElementsMatch(t, []int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9}, <-got)
		})
	}
}

func TestConcurrentStepFnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	// the input stays open: only the cancellation stops the workers
	input := &model.Step[int]{Output: make(chan int)}
	output := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "blocked", Concurrent: 3}}

	errC := make(chan error, 1)
	go func() {
		errC <- concurrentStepFn(ctx, &Pipeline{}, input, output, func(_ context.Context, i int) ([]int, error) {
			return []int{i}, nil
		})
	}()
	cancel()

	assert.ErrorIs(t, <-errC, context.Canceled)
}

func TestConcurrentStepFnCancelWhileEmitting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// nobody reads the output, so every worker blocks in emit
	output := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "stuck", Concurrent: 2}}
	started := make(chan struct{}, 2)

	errC := make(chan error, 1)
	go func() {
		errC <- concurrentStepFn(ctx, &Pipeline{}, inputOf(ctx, 10), output, func(_ context.Context, i int) ([]int, error) {
			started <- struct{}{}

			return []int{i}, nil
		})
	}()
	<-started
	cancel()

	assert.ErrorIs(t, <-errC, context.Canceled)
}

func TestConcurrentStepFnStopsOnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	output := &model.Step[int]{Output: make(chan int), Details: &model.StepInfo{Name: "fail", Concurrent: 4}}
	got := drainStep(output)

	err := concurrentStepFn(ctx, &Pipeline{}, inputOf(ctx, 1000), output, func(_ context.Context, i int) ([]int, error) {
		if i == 3 {
			return nil, assert.AnError
		}

		return []int{i}, nil
	})
	close(output.Output)

	require.ErrorIs(t, err, assert.AnError)
	assert.Less(t, len(<-got), 1000)
}
