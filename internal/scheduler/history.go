package scheduler

import (
	"sync"

	"portage/internal/model"
)

// History is the append-only record of every job ever admitted. A
// job's id is its 1-based position; ids are never reused and entries
// are never removed, only status-transitioned.
type History struct {
	mu   sync.RWMutex
	jobs []*model.Job
}

func NewHistory() *History {
	return &History{}
}

// Append admits a job and assigns its id. This is the single
// serialization point for id allocation.
func (h *History) Append(j *model.Job) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.jobs = append(h.jobs, j)
	id := len(h.jobs)
	j.SetID(id)
	return id
}

// Get resolves a 1-based index.
func (h *History) Get(i int) (*model.Job, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 1 || i > len(h.jobs) {
		return nil, false
	}

	return h.jobs[i-1], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs)
}

// Jobs returns the history as a snapshot slice, oldest first.
func (h *History) Jobs() []*model.Job {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*model.Job, len(h.jobs))
	copy(out, h.jobs)
	return out
}
