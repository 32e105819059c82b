package scheduler_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"portage/internal/model"
	"portage/internal/module"
	"portage/internal/record"
	"portage/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransfer struct {
	exit int
}

func (t *fakeTransfer) Progress() <-chan *record.Record {
	ch := make(chan *record.Record)
	close(ch)
	return ch
}

func (t *fakeTransfer) Wait() int { return t.exit }
func (t *fakeTransfer) Stop()     {}

type fakeModule struct {
	mu    sync.Mutex
	exits map[string]int
}

func newFakeModule() *fakeModule {
	return &fakeModule{exits: make(map[string]int)}
}

func (m *fakeModule) Name() string        { return "fake" }
func (m *fakeModule) Protocols() []string { return []string{"mock"} }

func (m *fakeModule) Info() *record.Record {
	r := record.New()
	r.Set("name", "fake")
	return r
}

func (m *fakeModule) Transfer(spec *record.Record) (module.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &fakeTransfer{exit: m.exits[spec.Get("src_url")]}, nil
}

func newJob(t *testing.T, reg *module.Registry, src string) *model.Job {
	t.Helper()

	spec := record.New()
	spec.Set("src_url", src)
	spec.Set("dest_url", "mock://dest")

	j := model.NewJob(spec, reg, model.NewClock())
	require.Equal(t, model.StatusScheduled, j.Status())
	return j
}

func TestQueueFIFO(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	q := scheduler.NewQueue()
	a := newJob(t, reg, "mock://a")
	b := newJob(t, reg, "mock://b")

	require.NoError(t, q.Put(a))
	require.NoError(t, q.Put(b))
	assert.Equal(t, 2, q.Len())

	got, ok := q.Take()
	require.True(t, ok)
	assert.Same(t, a, got)

	got, ok = q.Take()
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueueWithdraw(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	q := scheduler.NewQueue()
	a := newJob(t, reg, "mock://a")
	b := newJob(t, reg, "mock://b")

	require.NoError(t, q.Put(a))
	require.NoError(t, q.Put(b))

	assert.True(t, q.Withdraw(a))
	assert.False(t, q.Withdraw(a))

	got, ok := q.Take()
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestQueueClose(t *testing.T) {
	q := scheduler.NewQueue()
	q.Close()

	_, ok := q.Take()
	assert.False(t, ok)
	assert.ErrorIs(t, q.Put(nil), scheduler.ErrQueueClosed)
}

func TestQueueBlockingTake(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	q := scheduler.NewQueue()
	a := newJob(t, reg, "mock://a")

	got := make(chan *model.Job, 1)
	go func() {
		j, ok := q.Take()
		if ok {
			got <- j
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(a))

	select {
	case j := <-got:
		assert.Same(t, a, j)
	case <-time.After(time.Second):
		t.Fatal("Take never returned")
	}
}

func TestHistoryIDs(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	h := scheduler.NewHistory()
	a := newJob(t, reg, "mock://a")
	b := newJob(t, reg, "mock://b")

	assert.Equal(t, 1, h.Append(a))
	assert.Equal(t, 2, h.Append(b))
	assert.Equal(t, 1, a.ID())
	assert.Equal(t, 2, h.Len())

	got, ok := h.Get(2)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = h.Get(0)
	assert.False(t, ok)
	_, ok = h.Get(3)
	assert.False(t, ok)
}

func TestSchedulerRunsJobs(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	s := scheduler.New(3, 10, nil)
	s.Start()
	defer s.Stop()

	jobs := make([]*model.Job, 0, 5)
	for i := range 5 {
		j := newJob(t, reg, fmt.Sprintf("mock://src/%d", i))
		id, err := s.Submit(j)
		require.NoError(t, err)
		assert.Equal(t, i+1, id)
		jobs = append(jobs, j)
	}

	require.Eventually(t, func() bool {
		for _, j := range jobs {
			if j.Status() != model.StatusComplete {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerRetriesFailedJob(t *testing.T) {
	fm := newFakeModule()
	fm.exits["mock://flaky"] = 1

	reg := module.NewRegistry()
	reg.Register(fm)

	s := scheduler.New(1, 10, nil)
	s.Start()
	defer s.Stop()

	spec := record.New()
	spec.Set("src_url", "mock://flaky")
	spec.Set("dest_url", "mock://dest")
	spec.SetInt("max_attempts", 2)

	j := model.NewJob(spec, reg, model.NewClock())
	_, err := s.Submit(j)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return j.Status() == model.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, j.Attempts())
}

func TestSchedulerSkipsCancelledJob(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	// Not started yet, so the job sits in the queue when cancelled.
	s := scheduler.New(1, 10, nil)

	j := newJob(t, reg, "mock://a")
	_, err := s.Submit(j)
	require.NoError(t, err)

	require.True(t, j.Remove("removed by user"))

	s.Start()
	defer s.Stop()

	probe := newJob(t, reg, "mock://b")
	_, err = s.Submit(probe)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return probe.Status() == model.StatusComplete
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, model.StatusRemoved, j.Status())
	assert.Equal(t, 0, j.Attempts())
}

func TestConcurrentSubmissions(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	s := scheduler.New(4, 10, nil)
	s.Start()
	defer s.Stop()

	const n = 50

	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			j := newJob(t, reg, fmt.Sprintf("mock://src/%d", i))
			id, err := s.Submit(j)
			assert.NoError(t, err)
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, n)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	assert.Equal(t, n, s.History().Len())
	for i := 1; i <= n; i++ {
		_, ok := s.History().Get(i)
		assert.True(t, ok)
	}
}

type memoryRecorder struct {
	mu   sync.Mutex
	rows []model.Attempt
}

func (r *memoryRecorder) Save(a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *a)
	return nil
}

func (r *memoryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func TestSchedulerRecordsAttempts(t *testing.T) {
	reg := module.NewRegistry()
	reg.Register(newFakeModule())

	rec := &memoryRecorder{}
	s := scheduler.New(1, 10, rec)
	s.Start()
	defer s.Stop()

	j := newJob(t, reg, "mock://a")
	_, err := s.Submit(j)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, string(model.StatusComplete), rec.rows[0].Status)
	assert.Equal(t, 1, rec.rows[0].JobID)
}
