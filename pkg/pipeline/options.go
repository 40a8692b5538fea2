package pipeline

// StepOption configures a step when it is added to the pipeline.
type StepOption[O any] func(s *stepConfig)

type stepConfig struct {
	concurrent int
}

// StepConcurrency sets how many workers consume the step input at the same time.
// Values lower than 1 mean a single worker.
func StepConcurrency[O any](concurrent int) StepOption[O] {
	return func(s *stepConfig) {
		s.concurrent = concurrent
	}
}

func newStepConfig[O any](opts ...StepOption[O]) *stepConfig {
	cfg := &stepConfig{concurrent: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.concurrent < 1 {
		cfg.concurrent = 1
	}

	return cfg
}
