// Package cmd holds the camerahost subcommands.
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/camerahost/internal/camera"
	"github.com/smazurov/camerahost/internal/capture"
)

const defaultCommandTimeout = 30 * time.Second

var errTimeout = errors.New("camera command timed out")

// Env carries the parts a subcommand builds its controller from. It is
// filled in once options are parsed.
type Env struct {
	Directory      camera.DeviceLister
	Factory        capture.Factory
	Paths          camera.PathBuilder
	CommandTimeout time.Duration
}

func (e Env) timeout() time.Duration {
	if e.CommandTimeout <= 0 {
		return defaultCommandTimeout
	}
	return e.CommandTimeout
}

// await issues a controller command and blocks until it completes.
func await[T any](ctx context.Context, timeout time.Duration, issue func(done func(T, error))) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	issue(func(v T, err error) { ch <- outcome{v, err} })

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var zero T
	select {
	case o := <-ch:
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errTimeout
		}
		return zero, ctx.Err()
	}
}
