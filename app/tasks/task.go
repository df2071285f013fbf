package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeRefreshFeed    TaskType = "refresh_feed"
	TaskTypePruneSnapshots TaskType = "prune_snapshots"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 5 * time.Minute
)

// policy is the retry and timeout budget of one task type.
type policy struct {
	maxRetries int
	timeout    time.Duration
}

// A refresh talks to the origin and is worth retrying; pruning is a local
// delete that either works or will run again on the next tick anyway.
var policies = map[TaskType]policy{
	TaskTypeRefreshFeed:    {maxRetries: DefaultMaxRetries, timeout: 2 * time.Minute},
	TaskTypePruneSnapshots: {maxRetries: 0, timeout: 30 * time.Second},
}

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetSubject() string
	GetRetryCount() int
	GetMaxRetries() int
	GetTimeout() time.Duration
	IncrementRetryCount()
	CanRetry() bool
	RetryDelay(base, limit time.Duration) time.Duration
	Start()
	GetDuration() time.Duration
	GetQueueWait() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	Subject    string // feed URL or table the task acts on
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
	EnqueuedAt time.Time
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetSubject() string {
	return t.Subject
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) GetTimeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// RetryDelay doubles base for every retry already taken, capped at limit.
func (t *Task) RetryDelay(base, limit time.Duration) time.Duration {
	delay := base
	for i := 1; i < t.RetryCount && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

// Start marks the task as picked up by a worker.
func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

// GetQueueWait is the time from creation to the latest start, retry delays
// included.
func (t *Task) GetQueueWait() time.Duration {
	if t.StartedAt == nil || t.EnqueuedAt.IsZero() {
		return 0
	}
	return t.StartedAt.Sub(t.EnqueuedAt)
}

func NewTask(taskType TaskType, subject string) Task {
	p, ok := policies[taskType]
	if !ok {
		p = policy{maxRetries: DefaultMaxRetries, timeout: DefaultTimeout}
	}

	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Subject:    subject,
		RetryCount: 0,
		MaxRetries: p.maxRetries,
		Timeout:    p.timeout,
		EnqueuedAt: time.Now(),
	}
}
