package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsSubmittedTasks(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	go d.Start(ctx)

	var ran atomic.Int32
	ok := d.Submit(ctx, Task{Name: "write_episodic", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}})
	require.True(t, ok)

	assert.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcherSwallowsTaskErrors(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	go d.Start(ctx)

	var second atomic.Bool
	d.Submit(ctx, Task{Name: "boom", Run: func(ctx context.Context) error {
		return errors.New("storage offline")
	}})
	d.Submit(ctx, Task{Name: "after", Run: func(ctx context.Context) error {
		second.Store(true)
		return nil
	}})

	assert.Eventually(t, second.Load, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, d.Submit(ctx, Task{Name: "queued", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	go d.Start(ctx)
	cancel()

	require.NoError(t, d.Shutdown(context.Background()))
	assert.EqualValues(t, 5, ran.Load())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	// Not started, so the queue only fills up.
	for i := 0; i < defaultQueueSize; i++ {
		require.True(t, d.Submit(ctx, Task{Name: "fill", Run: func(ctx context.Context) error { return nil }}))
	}
	assert.False(t, d.Submit(ctx, Task{Name: "overflow", Run: func(ctx context.Context) error { return nil }}))
}
