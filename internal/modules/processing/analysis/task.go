package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rationable/api/internal/modules/storage/cache"
	"github.com/rationable/api/internal/pkg/taskqueue"
)

const (
	TaskTypeAnalyze    = "analyze"
	defaultTaskTimeout = 3 * time.Minute
)

// Tasks records queued runs. *taskqueue.Service satisfies it.
type Tasks interface {
	Enqueue(ctx context.Context, taskType, ownerID string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error)
	Get(ctx context.Context, id string) (*taskqueue.Task, error)
	Progress(ctx context.Context, id, progress string) error
	Complete(ctx context.Context, id string, result interface{}) error
	Fail(ctx context.Context, id, errMsg string) error
}

// TaskRunner executes analyses in the background and records their progress as task
// records a client can poll.
type TaskRunner struct {
	orch    *Orchestrator
	tasks   Tasks
	timeout time.Duration
	logger  *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewTaskRunner(orch *Orchestrator, tasks Tasks, timeout time.Duration, logger *zap.Logger) *TaskRunner {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &TaskRunner{orch: orch, tasks: tasks, timeout: timeout, logger: logger, base: base, cancel: cancel}
}

// Submit queues req for the caller. An identical unfinished request from the same owner
// returns the existing task instead of starting another run.
func (r *TaskRunner) Submit(ctx context.Context, req Request) (*taskqueue.Task, error) {
	if err := r.orch.Validate(req); err != nil {
		return nil, err
	}
	if r.isClosed() {
		return nil, context.Canceled
	}
	parts := []string{"task", req.OwnerID, req.Dilemma, req.Language}
	parts = append(parts, criteriaParts(normalizeCriteria(req.Criteria, maxCriteriaCount))...)
	task, created, err := r.tasks.Enqueue(ctx, TaskTypeAnalyze, req.OwnerID, req, cache.Key(parts...))
	if err != nil {
		return nil, err
	}
	if !created {
		return task, nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if ferr := r.tasks.Fail(context.WithoutCancel(ctx), task.ID, context.Canceled.Error()); ferr != nil {
			r.logger.Warn("task fail update failed", zap.String("task", task.ID), zap.Error(ferr))
		}
		return nil, context.Canceled
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go r.execute(task.ID, req)
	return task, nil
}

func (r *TaskRunner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *TaskRunner) execute(id string, req Request) {
	defer r.wg.Done()
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()
	log := r.logger.With(zap.String("task", id))

	obs := ObserverFunc(func(e Event) {
		if e.Type != EventPhase {
			return
		}
		phase, _ := e.Data.(Phase)
		if phase == PhaseIdle || phase == "" {
			return
		}
		if err := r.tasks.Progress(ctx, id, string(phase)); err != nil {
			log.Warn("task progress update failed", zap.Error(err))
		}
	})

	d, err := r.orch.Run(ctx, req, obs)
	final := context.WithoutCancel(ctx)
	if err != nil {
		if ferr := r.tasks.Fail(final, id, err.Error()); ferr != nil {
			log.Error("task fail update failed", zap.Error(ferr))
		}
		return
	}
	if err := r.tasks.Complete(final, id, d); err != nil {
		log.Error("task complete update failed", zap.Error(err))
	}
}

// Get returns the task when it belongs to ownerID.
func (r *TaskRunner) Get(ctx context.Context, id, ownerID string) (*taskqueue.Task, error) {
	task, err := r.tasks.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if task.OwnerID != ownerID {
		return nil, taskqueue.ErrNotFound
	}
	return task, nil
}

// Close cancels in-flight runs and waits for them to record their outcome.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func isNotFound(err error) bool { return errors.Is(err, taskqueue.ErrNotFound) }
