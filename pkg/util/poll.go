package util

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when every tick ran without completion
var ErrPollTimeout = errors.New("timed out waiting for completion")

// Poll calls done up to ticks times, waiting interval between calls, until
// it reports true. An error from done stops polling.
func Poll(ctx context.Context, ticks int, interval time.Duration, done func() (bool, error)) error {
	for i := 0; i < ticks; i++ {
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == ticks-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrPollTimeout
}
