// Package scheduler owns the work queue, the append-only job history
// and the fixed pool of workers that drive jobs to completion.
package scheduler

import (
	"errors"
	"sync"

	"portage/internal/model"
)

var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of scheduled jobs, safe for many
// producers and consumers. Unlike a channel it supports withdrawing an
// arbitrary queued job, which removal needs.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*model.Job
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Put(j *model.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, j)
	q.cond.Signal()
	return nil
}

// Take blocks until a job is available or the queue is closed. The
// second return is false only when the queue is closed and drained.
func (q *Queue) Take() (*model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}

	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

// Withdraw removes j from the queue if it is still queued.
func (q *Queue) Withdraw(j *model.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item == j {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}

	return false
}

// Close wakes all blocked consumers; queued jobs may still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
