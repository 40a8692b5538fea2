package pipeline

import (
	"context"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/model"
)

// AddRootStep adds the step feeding the pipeline. stepFn pushes values to rootChan and must stop pushing once
// ctx is done. rootChan is closed when stepFn returns.
func AddRootStep[O any](p *Pipeline, name string, stepFn func(ctx context.Context, rootChan chan<- O) error) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if stepFn == nil {
		return nil, ErrStepFnMustBeSet
	}

	output := make(chan O)
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       model.RootStepType,
			Name:       name,
			Concurrent: 1,
		},
		Output: output,
	}
	err := p.prepareStep(model.StartStep.Details, step.Details)
	if err != nil {
		return nil, err
	}

	errC := make(chan error, 1)
	go func() {
		defer func() {
			close(output)
			close(errC)
		}()
		err := stepFn(p.ctx, output)
		if err != nil {
			errC <- err
		}
	}()
	p.errcList.add(newErrorChan(name, errC))

	return step, nil
}
