// Package pipeline provides a small channel based engine to process items through a chain of steps.
//
// A root step emits items, each following step transforms them (one-to-one or one-to-many) and a sink consumes
// the result. Steps run in their own goroutines and are connected with unbuffered channels, so a step only pulls
// the next item once it is ready for it. A step can run several workers concurrently, which is how the driver
// bounds the number of regions simulated at the same time.
//
// The pipeline stops on the first error returned by any step: the shared context is cancelled and Run returns
// the error decorated with the name of the step that produced it.
//
// Options (see the measure and drawer packages) hook into the pipeline to record step durations and to render
// the pipeline graph once the run is over.
package pipeline
