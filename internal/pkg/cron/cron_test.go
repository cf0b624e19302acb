package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	var runs atomic.Int32
	s := New(nil)
	s.Register(Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()

	items := s.List()
	require.Len(t, items, 1)
	assert.Equal(t, StatusOK, items[0].Status)
	assert.NotNil(t, items[0].LastRunAt)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("nope") }})

	err := s.RunNow(context.Background(), "bad")
	assert.ErrorContains(t, err, "nope")
	assert.Equal(t, StatusFailed, s.List()[0].Status)

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}
