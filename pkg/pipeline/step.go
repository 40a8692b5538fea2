package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/model"
)

// emit pushes out to the step output unless the context is done first.
func emit[O any](ctx context.Context, output *model.Step[O], out O) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case output.Output <- out:
		return nil
	}
}

func sequentialStepFn[I any, O any](ctx context.Context, p *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], fn func(context.Context, I) ([]O, error)) error {
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			outs, err := fn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d", goIdx)
			}
			endFn := time.Since(startFn)

			for _, out := range outs {
				// the context is checked again so that running workers stop pushing
				// new elements once the pipeline is cancelled
				err := emit(ctx, output, out)
				if err != nil {
					return errors.Wrapf(err, "go routine %d", goIdx)
				}
			}
			err = p.onStepOutput(input.Details, output.Details, time.Since(start)-endFn, endFn)
			if err != nil {
				return err
			}
		}
	}
}

func concurrentStepFn[I any, O any](ctx context.Context, p *Pipeline, input *model.Step[I], output *model.Step[O], fn func(context.Context, I) ([]O, error)) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	// each worker stops as soon as one of them fails
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		localGoIdx := goIdx
		errGrp.Go(func() error {
			return sequentialStepFn(dCtx, p, localGoIdx, input, output, fn)
		})
	}

	return errGrp.Wait()
}

func runStep[I any, O any](ctx context.Context, p *Pipeline, input *model.Step[I], output *model.Step[O], fn func(context.Context, I) ([]O, error)) error {
	if output.Details.Concurrent <= 1 {
		return sequentialStepFn(ctx, p, 0, input, output, fn)
	}

	return concurrentStepFn(ctx, p, input, output, fn)
}

func addStep[I any, O any](p *Pipeline, name string, stepType model.StepType, input *model.Step[I], fn func(context.Context, I) ([]O, error), cfg *stepConfig) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}

	output := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       stepType,
			Name:       name,
			Concurrent: cfg.concurrent,
		},
		Output: make(chan O),
	}
	err := p.prepareStep(input.Details, output.Details)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	go func() {
		defer func() {
			close(output.Output)
			close(errC)
		}()
		err := runStep(p.ctx, p, input, output, fn)
		if err != nil {
			errC <- err
		}
	}()
	p.errcList.add(newErrorChan(name, errC))

	return output, nil
}

// AddStepOneToOne adds a step producing exactly one output per input.
func AddStepOneToOne[I any, O any](p *Pipeline, name string, input *model.Step[I], oneToOneFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if oneToOneFn == nil {
		return nil, ErrStepFnMustBeSet
	}

	return addStep(p, name, model.OneToOneStepType, input, func(ctx context.Context, in I) ([]O, error) {
		out, err := oneToOneFn(ctx, in)
		if err != nil {
			return nil, err
		}

		return []O{out}, nil
	}, newStepConfig(opts...))
}

// AddStepOneToMany adds a step producing zero or more outputs per input.
func AddStepOneToMany[I any, O any](p *Pipeline, name string, input *model.Step[I], oneToManyFn func(context.Context, I) ([]O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if oneToManyFn == nil {
		return nil, ErrStepFnMustBeSet
	}

	return addStep(p, name, model.OneToManyType, input, oneToManyFn, newStepConfig(opts...))
}
