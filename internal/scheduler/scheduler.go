package scheduler

import (
	"sync"

	"portage/internal/logger"
	"portage/internal/model"

	"go.uber.org/zap"
)

const defaultWorkers = 10

// AttemptRecorder receives the audit row of every finished attempt.
type AttemptRecorder interface {
	Save(a *model.Attempt) error
}

// Scheduler pairs the work queue with a fixed pool of workers and the
// job history. Workers live for the whole server lifetime; a panic
// inside one attempt is contained and the worker keeps serving.
type Scheduler struct {
	queue   *Queue
	history *History

	workers     int
	maxAttempts int
	recorder    AttemptRecorder

	wg sync.WaitGroup
}

// New builds a scheduler with the given pool size and global retry
// ceiling. An invalid pool size falls back to the default with a
// warning. The recorder may be nil.
func New(workers, maxAttempts int, recorder AttemptRecorder) *Scheduler {
	if workers < 1 {
		logger.Log.Warn("invalid worker pool size, using default",
			zap.Int("requested", workers),
			zap.Int("default", defaultWorkers))
		workers = defaultWorkers
	}

	return &Scheduler{
		queue:       NewQueue(),
		history:     NewHistory(),
		workers:     workers,
		maxAttempts: maxAttempts,
		recorder:    recorder,
	}
}

func (s *Scheduler) Queue() *Queue {
	return s.queue
}

func (s *Scheduler) History() *History {
	return s.history
}

func (s *Scheduler) Start() {
	for i := range s.workers {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Log.Info("scheduler started",
		zap.Int("workers", s.workers))
}

// Submit atomically admits a job to the history and enqueues it.
// Returns the assigned job id.
func (s *Scheduler) Submit(j *model.Job) (int, error) {
	id := s.history.Append(j)

	if err := s.queue.Put(j); err != nil {
		return id, err
	}

	return id, nil
}

// Stop closes the queue and waits for idle workers to exit. Workers
// mid-attempt finish their current job first.
func (s *Scheduler) Stop() {
	s.queue.Close()
	s.wg.Wait()
}

func (s *Scheduler) worker(n int) {
	defer s.wg.Done()

	logger.Log.Debug("worker starting", zap.Int("worker", n))

	for {
		j, ok := s.queue.Take()
		if !ok {
			logger.Log.Debug("worker exiting", zap.Int("worker", n))
			return
		}

		// A job can be cancelled between enqueue and dequeue.
		if j.Status() != model.StatusScheduled {
			logger.Log.Debug("skipping dequeued job, no longer scheduled",
				zap.Int("worker", n),
				zap.Int("job_id", j.ID()),
				zap.String("status", string(j.Status())))
			continue
		}

		s.runJob(n, j)
	}
}

func (s *Scheduler) runJob(n int, j *model.Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("panic during job attempt",
				zap.Int("worker", n),
				zap.Int("job_id", j.ID()),
				zap.Any("panic", r))
		}
	}()

	attempt, ran := j.Run(s.maxAttempts, s.queue.Put)
	if !ran {
		return
	}

	logger.Log.Info("attempt finished",
		zap.Int("worker", n),
		zap.Int("job_id", attempt.JobID),
		zap.String("status", attempt.Status),
		zap.Int("exit_code", attempt.ExitCode))

	if s.recorder != nil {
		if err := s.recorder.Save(&attempt); err != nil {
			logger.Log.Warn("failed to save attempt history",
				zap.Int("job_id", attempt.JobID),
				zap.Error(err))
		}
	}
}
