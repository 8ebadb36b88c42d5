package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoll(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), 5, time.Millisecond, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Poll(context.Background(), 4, time.Millisecond, func() (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 4, calls)

	boom := errors.New("boom")
	err = Poll(context.Background(), 4, time.Millisecond, func() (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Poll(ctx, 4, time.Hour, func() (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
