package background

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandevgo/loanpilot/pkg/log"
)

const (
	defaultQueueSize   = 256
	defaultTaskTimeout = 30 * time.Second
)

// Task is a named unit of fire-and-forget work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs tasks off the request path. Correlation uses it to write
// episodic memory without blocking the answer. Failures are logged and
// swallowed; a full queue drops the task rather than stalling the caller.
type Dispatcher struct {
	queue       chan Task
	taskTimeout time.Duration
	done        chan struct{}
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		queue:       make(chan Task, defaultQueueSize),
		taskTimeout: defaultTaskTimeout,
		done:        make(chan struct{}),
	}
}

// Submit enqueues a task. Returns false when the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, task Task) bool {
	select {
	case d.queue <- task:
		return true
	default:
		log.FromCtx(ctx).Warn().Str("task", task.Name).Msg("background queue full, dropping task")
		return false
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "background_dispatcher").Logger()
	logger.Info().Msg("starting background dispatcher")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down background dispatcher")
			d.drain(&logger)
			close(d.done)
			return nil
		case task := <-d.queue:
			d.run(ctx, task, &logger)
		}
	}
}

// Shutdown waits for Start to finish draining.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.done:
	case <-time.After(d.taskTimeout):
	}
	return nil
}

// drain runs whatever is still queued at shutdown, detached from the
// cancelled run context.
func (d *Dispatcher) drain(logger *zerolog.Logger) {
	ctx := logger.WithContext(context.Background())
	for {
		select {
		case task := <-d.queue:
			d.run(ctx, task, logger)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task, logger *zerolog.Logger) {
	taskCtx, cancel := context.WithTimeout(logger.WithContext(context.WithoutCancel(ctx)), d.taskTimeout)
	defer cancel()

	if err := task.Run(taskCtx); err != nil {
		logger.Error().Err(err).Str("task", task.Name).Msg("background task failed")
		return
	}
	logger.Debug().Str("task", task.Name).Msg("background task done")
}
