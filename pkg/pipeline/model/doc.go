// Package model provides the data structures shared by the pipeline engine and its options.
// It defines the steps flowing through a pipeline and the hooks a pipeline option can implement.
package model
