package model

// StepType tells what kind of node a step is in the pipeline graph.
type StepType string

const (
	RootStepType     StepType = "root"
	OneToOneStepType StepType = "one-to-one"
	OneToManyType    StepType = "one-to-many"
	SinkStepType     StepType = "sink"
)

// StepInfo describes a step independently of the type flowing through it.
type StepInfo struct {
	Type       StepType
	Name       string
	Concurrent int
}

var (
	StartStep = &Step[any]{Details: &StepInfo{Name: "start"}}
	EndStep   = &Step[any]{Details: &StepInfo{Name: "end"}}
)

// Step is a node of the pipeline. Output is closed once the step has no more values to emit.
type Step[O any] struct {
	Output  chan O
	Details *StepInfo
}
