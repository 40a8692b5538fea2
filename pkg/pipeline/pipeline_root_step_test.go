package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline"
)

func TestAddRootStepNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddRootStep(nil, "regions", emitRange(10))
	assert.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddRootStepNilFn(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	_, err = pipeline.AddRootStep[int](pipe, "regions", nil)
	assert.ErrorIs(t, err, pipeline.ErrStepFnMustBeSet)
}

func TestAddRootStep(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "regions", emitRange(10))
	require.NoError(t, err)

	got := collect(t, root.Output)

	require.NoError(t, pipe.Run())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, <-got)
}

func TestAddRootStepError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "regions", func(ctx context.Context, rootChan chan<- int) error {
		rootChan <- 1

		return assert.AnError
	})
	require.NoError(t, err)

	got := collect(t, root.Output)

	err = pipe.Run()
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "regions")
	assert.Equal(t, []int{1}, <-got)
}
