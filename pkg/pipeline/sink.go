package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/model"
)

func (p *Pipeline) prepareSink(parent, step *model.StepInfo) error {
	for _, opt := range p.opts {
		err := opt.PrepareSink(parent, step)
		if err != nil {
			return errors.Wrap(err, "unable to prepare sink")
		}
	}

	return nil
}

func (p *Pipeline) afterSink(step *model.StepInfo) error {
	for _, opt := range p.opts {
		err := opt.AfterSink(step, time.Since(p.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to run after sink function")
		}
	}

	return nil
}

// AddSink adds the final step of the pipeline. sinkFn is called sequentially for each input.
func AddSink[I any](p *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	if p == nil {
		return ErrPipelineMustBeSet
	}
	if input == nil {
		return ErrInputMustBeSet
	}
	if sinkFn == nil {
		return ErrStepFnMustBeSet
	}
	step := &model.StepInfo{
		Type:       model.SinkStepType,
		Name:       name,
		Concurrent: 1,
	}
	err := p.prepareSink(input.Details, step)
	if err != nil {
		return err
	}

	errC := make(chan error, 1)
	go func() {
		defer close(errC)
		err := sinkLoop(p, step, input, sinkFn)
		if err != nil {
			errC <- err

			return
		}
		err = p.afterSink(step)
		if err != nil {
			errC <- err
		}
	}()
	p.errcList.add(newErrorChan(name, errC))

	return nil
}

func sinkLoop[I any](p *Pipeline, step *model.StepInfo, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	for {
		startInputChan := time.Now()
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			endInputChan := time.Since(startInputChan)

			startFn := time.Now()
			err := sinkFn(p.ctx, in)
			if err != nil {
				return err
			}
			endFn := time.Since(startFn)
			for _, opt := range p.opts {
				err := opt.OnSinkOutput(input.Details, step, endInputChan, endFn)
				if err != nil {
					return errors.Wrap(err, "unable to record sink output")
				}
			}
		}
	}
}
