package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redisc "github.com/rationable/api/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s TaskStatus) Finished() bool { return s == TaskCompleted || s == TaskFailed }

// ErrNotFound is returned for unknown or expired task ids.
var ErrNotFound = errors.New("task not found")

// Task is a unit of background work stored in Redis.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	OwnerID   string          `json:"owner_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Progress  string          `json:"progress,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	DedupKey  string          `json:"dedup_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	keyPrefix   = "rationable:task:"
	keyIndex    = "rationable:tasks:index"  // sorted set: score=created_at, member=task_id
	keyDedupSet = "rationable:tasks:dedup:" // hash per type: dedup_key -> task_id
	taskTTL     = 24 * time.Hour
)

// Service manages the Redis-backed task records.
type Service struct {
	rc  *redisc.Client
	now func() time.Time
}

func NewService(rc *redisc.Client) *Service {
	return &Service{rc: rc, now: time.Now}
}

func (s *Service) taskKey(id string) string { return keyPrefix + id }

// Enqueue creates a pending task. When dedupKey matches an unfinished task of the same type,
// that task is returned instead and created is false.
func (s *Service) Enqueue(ctx context.Context, taskType, ownerID string, payload interface{}, dedupKey string) (task *Task, created bool, err error) {
	if dedupKey != "" {
		existing, err := s.rc.Raw().HGet(ctx, keyDedupSet+taskType, dedupKey).Result()
		if err == nil && existing != "" {
			if t, err := s.Get(ctx, existing); err == nil {
				return t, false, nil
			}
		}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	task = &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		OwnerID:   ownerID,
		Payload:   payloadBytes,
		Status:    TaskPending,
		DedupKey:  dedupKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, false, err
	}

	pipe := s.rc.Raw().TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, taskTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{Score: float64(now.UnixMilli()), Member: task.ID})
	if dedupKey != "" {
		pipe.HSet(ctx, keyDedupSet+taskType, dedupKey, task.ID)
		pipe.Expire(ctx, keyDedupSet+taskType, taskTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// Get retrieves a task by its ID.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	data, err := s.rc.Raw().Get(ctx, s.taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Progress records a human-readable progress marker on a running task.
func (s *Service) Progress(ctx context.Context, id, progress string) error {
	return s.update(ctx, id, func(t *Task) {
		t.Status = TaskRunning
		t.Progress = progress
	})
}

// Complete stores the result and marks the task completed.
func (s *Service) Complete(ctx context.Context, id string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.update(ctx, id, func(t *Task) {
		t.Status = TaskCompleted
		t.Result = raw
		t.Error = ""
	})
}

// Fail marks the task failed with errMsg.
func (s *Service) Fail(ctx context.Context, id, errMsg string) error {
	return s.update(ctx, id, func(t *Task) {
		t.Status = TaskFailed
		t.Error = errMsg
	})
}

func (s *Service) update(ctx context.Context, id string, mutate func(*Task)) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(task)
	task.UpdatedAt = s.now()

	if task.Status.Finished() && task.DedupKey != "" {
		s.rc.Raw().HDel(ctx, keyDedupSet+task.Type, task.DedupKey)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.rc.Raw().Set(ctx, s.taskKey(id), data, taskTTL).Err()
}

// DeleteFinished removes completed and failed tasks created before cutoff, plus index
// members whose records already expired. It returns the number of removed ids.
func (s *Service) DeleteFinished(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.rc.Raw().ZRangeByScore(ctx, keyIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(cutoff),
	}).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	pipe := s.rc.Raw().TxPipeline()
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			pipe.ZRem(ctx, keyIndex, id)
			removed++
			continue
		}
		if err != nil || !task.Status.Finished() {
			continue
		}
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, keyIndex, id)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	_, err = pipe.Exec(ctx)
	return removed, err
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
