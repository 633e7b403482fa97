package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BRA7534/CARFAST/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize          = 300
	taskTimeout        = 5 * time.Minute
	maxRetryDelay      = 30 * time.Second
	statusRetention    = time.Hour
	DefaultWorkerCount = 2
)

type TaskState string

const (
	TaskStateQueued    TaskState = "queued"
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// TaskStatus is the externally visible state of an enqueued task.
type TaskStatus struct {
	ID        string    `json:"id"`
	Type      TaskType  `json:"type"`
	Subject   string    `json:"subject"`
	State     TaskState `json:"state"`
	Error     string    `json:"error,omitempty"`
	Result    any       `json:"result,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stats struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	Tracked   int `json:"tracked"`
}

type resultHolder interface {
	Result() any
}

type Scheduler struct {
	reviews           database.ReviewRepository
	integrityInterval time.Duration
	workerCount       int
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	taskQueue         chan TaskInterface

	mu       sync.RWMutex
	statuses map[string]*TaskStatus
}

// NewScheduler builds a worker pool. The review store is verified every
// integrityInterval; zero disables the periodic run.
func NewScheduler(reviews database.ReviewRepository, workerCount int, integrityInterval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	return &Scheduler{
		reviews:           reviews,
		integrityInterval: integrityInterval,
		workerCount:       workerCount,
		ctx:               ctx,
		cancel:            cancel,
		taskQueue:         make(chan TaskInterface, queueSize),
		statuses:          make(map[string]*TaskStatus),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.integrityInterval <= 0 {
			return
		}

		ticker := time.NewTicker(s.integrityInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueIntegrityCheck()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers to exit. Tasks still
// queued are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	s.setStatus(task, TaskStateQueued, nil)

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		s.setStatus(task, TaskStateFailed, s.ctx.Err())
		return s.ctx.Err()
	default:
		err := fmt.Errorf("task queue is full")
		s.setStatus(task, TaskStateFailed, err)
		return err
	}
}

func (s *Scheduler) Status(id string) (TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[id]
	if !ok {
		return TaskStatus{}, false
	}
	return *status, true
}

func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Workers:   s.workerCount,
		QueueSize: len(s.taskQueue),
		Tracked:   len(s.statuses),
	}
}

func (s *Scheduler) enqueueIntegrityCheck() {
	if err := s.EnqueueTask(NewVerifyIntegrityTask(s.reviews)); err != nil {
		slog.Warn("Failed to enqueue VerifyIntegrityTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()
	s.setStatus(task, TaskStateRunning, nil)

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.setStatus(task, TaskStateSucceeded, nil)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		s.setStatus(task, TaskStateFailed, err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())
	s.setStatus(task, TaskStateQueued, err)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

func (s *Scheduler) setStatus(task TaskInterface, state TaskState, err error) {
	now := time.Now().UTC()

	status := &TaskStatus{
		ID:        task.GetID(),
		Type:      task.GetType(),
		Subject:   task.GetSubject(),
		State:     state,
		UpdatedAt: now,
	}
	if err != nil {
		status.Error = err.Error()
	}
	if holder, ok := task.(resultHolder); ok && state == TaskStateSucceeded {
		status.Result = holder.Result()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, old := range s.statuses {
		if old.State != TaskStateQueued && old.State != TaskStateRunning && now.Sub(old.UpdatedAt) > statusRetention {
			delete(s.statuses, id)
		}
	}
	s.statuses[task.GetID()] = status
}
