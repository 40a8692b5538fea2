package pipeline_test

import (
	"context"
	"testing"
)

func emitRange(total int) func(ctx context.Context, rootChan chan<- int) error {
	return func(ctx context.Context, rootChan chan<- int) error {
		for i := 0; i < total; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	}
}

func collect[T any](t *testing.T, output <-chan T) <-chan []T {
	t.Helper()
	done := make(chan []T, 1)
	go func() {
		var res []T
		for out := range output {
			res = append(res, out)
		}
		done <- res
	}()

	return done
}
