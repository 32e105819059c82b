package model

import (
	"net/url"
	"sync"

	"portage/internal/logger"
	"portage/internal/module"
	"portage/internal/record"

	"go.uber.org/zap"
)

// Fields never exposed in a rendered job snapshot.
const credentialField = "x509_proxy"

// Job is one submitted transfer request, tracked from submission until
// server shutdown. All mutable fields are guarded by mu; the rendered
// snapshot is memoized and invalidated on every mutation.
type Job struct {
	mu sync.Mutex

	id       int
	status   Status
	spec     *record.Record
	progress *record.Record
	attempts int
	exitCode int
	message  string

	submitTime  int64
	startTime   int64
	runDuration int

	cached   *record.Record
	transfer module.Transfer
	mod      module.Module
	clock    *Clock
}

// NewJob builds a job from an already-filtered submission record. The
// job starts scheduled, or failed when the URLs cannot be parsed or no
// single module handles both schemes.
func NewJob(spec *record.Record, reg *module.Registry, clock *Clock) *Job {
	j := &Job{
		status:      StatusScheduled,
		spec:        spec.Copy(),
		exitCode:    -1,
		startTime:   -1,
		runDuration: -1,
		clock:       clock,
	}

	src, serr := url.Parse(spec.Get("src_url"))
	dest, derr := url.Parse(spec.Get("dest_url"))
	if serr != nil || derr != nil || src.Scheme == "" || dest.Scheme == "" {
		j.status = StatusFailed
		j.message = "could not parse src_url or dest_url"
		return j
	}

	j.spec.Set("src_url", src.String())
	j.spec.Set("dest_url", dest.String())

	sm, sok := reg.Lookup(src.Scheme)
	dm, dok := reg.Lookup(dest.Scheme)
	if !sok || !dok || sm != dm {
		j.status = StatusFailed
		j.message = "could not find transfer module for " + src.Scheme + " -> " + dest.Scheme
		return j
	}

	j.mod = sm
	j.submitTime = clock.Now()
	return j
}

func (j *Job) ID() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// SetID assigns the job's history position. Called exactly once, at
// admission.
func (j *Job) SetID(id int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.id = id
	j.cached = nil
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) Message() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

func (j *Job) Attempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

func (j *Job) SubmitTime() int64 {
	return j.submitTime
}

// Remove cancels the job. A processing job has its active transfer
// stopped and its run duration frozen; a scheduled job is simply marked
// removed. Returns false when the job already ended.
func (j *Job) Remove(reason string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.status {
	case StatusProcessing:
		if j.transfer != nil {
			j.transfer.Stop()
		}
		j.runDuration = j.clock.Since(j.startTime)
		j.transfer = nil
		fallthrough

	case StatusScheduled:
		j.message = reason
		j.status = StatusRemoved
		j.cached = nil
		return true

	default:
		return false
	}
}

// ShouldReschedule reports whether another attempt is allowed after a
// failure: never for exit codes at or above ExitNoRetry, and only while
// both the per-job and the configured attempt ceilings permit it. A
// ceiling of zero or below disables that check.
func (j *Job) ShouldReschedule(globalMax int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.shouldRescheduleLocked(globalMax)
}

func (j *Job) shouldRescheduleLocked(globalMax int) bool {
	if j.exitCode >= module.ExitNoRetry {
		return false
	}

	if max := j.spec.GetInt("max_attempts", 10); max > 0 && j.attempts >= max {
		return false
	}

	if globalMax > 0 && j.attempts >= globalMax {
		return false
	}

	return true
}

// Run executes one full attempt on the calling goroutine: start the
// transfer, drain its progress stream, wait for the exit code and apply
// the completion or reschedule transition. Requeue is called when the
// job goes back to scheduled. Returns the attempt audit row and whether
// an attempt actually ran (a job cancelled while queued does not run).
func (j *Job) Run(globalMax int, requeue func(*Job) error) (Attempt, bool) {
	j.mu.Lock()
	if j.status != StatusScheduled {
		j.mu.Unlock()
		return Attempt{}, false
	}

	j.startTime = j.clock.Now()
	j.status = StatusProcessing
	j.cached = nil

	t, err := j.mod.Transfer(j.spec)
	if err != nil {
		j.message = "failed to start transfer: " + err.Error()
		j.mu.Unlock()
		return j.finish(1, globalMax, requeue), true
	}
	j.transfer = t
	j.mu.Unlock()

	for rec := range t.Progress() {
		if record.IsError(rec) {
			break
		}

		j.mu.Lock()
		j.progress = rec
		if rec.Has("message") {
			j.message = rec.Get("message")
		}
		j.cached = nil
		j.mu.Unlock()
	}

	return j.finish(t.Wait(), globalMax, requeue), true
}

func (j *Job) finish(rv, globalMax int, requeue func(*Job) error) Attempt {
	j.mu.Lock()

	// Cancelled mid-attempt: Remove already froze the duration and set
	// the terminal status, keep it.
	if j.status == StatusRemoved {
		a := j.attemptRowLocked()
		j.mu.Unlock()
		return a
	}

	j.transfer = nil
	j.exitCode = rv
	j.runDuration = j.clock.Since(j.startTime)
	j.cached = nil

	if rv == 0 {
		j.status = StatusComplete
		a := j.attemptRowLocked()
		j.mu.Unlock()
		return a
	}

	if j.shouldRescheduleLocked(globalMax) {
		j.status = StatusScheduled
		j.attempts++
		a := j.attemptRowLocked()
		j.mu.Unlock()

		logger.Log.Info("job failed, rescheduling",
			zap.Int("job_id", a.JobID),
			zap.Int("exit_code", rv),
			zap.Int("attempts", a.Tries))

		if err := requeue(j); err != nil {
			logger.Log.Error("failed to requeue job",
				zap.Int("job_id", a.JobID),
				zap.Error(err))
		}
		return a
	}

	j.status = StatusFailed
	a := j.attemptRowLocked()
	j.mu.Unlock()

	logger.Log.Info("job failed",
		zap.Int("job_id", a.JobID),
		zap.Int("exit_code", rv))
	return a
}

func (j *Job) attemptRowLocked() Attempt {
	return Attempt{
		JobID:      j.id,
		SrcURL:     j.spec.Get("src_url"),
		DestURL:    j.spec.Get("dest_url"),
		Status:     string(j.status),
		ExitCode:   j.exitCode,
		DurationMS: j.runDuration,
		Tries:      j.attempts,
	}
}

// Snapshot renders the externally visible view of the job: the spec
// minus credentials, the latest progress, and the status overlay. The
// result is memoized until the next mutation; while processing, the run
// duration is recomputed live on every call.
func (j *Job) Snapshot() *record.Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	ad := j.cached
	if ad == nil {
		ad = j.spec.Copy()
		ad.Remove(credentialField)

		if j.progress != nil {
			ad.Merge(j.progress)
			// A module must not be able to fake a response envelope.
			ad.Remove("response")
		}

		ad.Set("status", string(j.status))
		if j.id > 0 {
			ad.SetInt("job_id", j.id)
		}
		if j.attempts > 0 {
			ad.SetInt("attempts", j.attempts)
		}
		if j.message != "" {
			ad.Set("message", j.message)
		} else {
			ad.Remove("message")
		}
		if j.runDuration >= 0 {
			ad.Set("run_duration", PrettyDuration(j.runDuration))
		}

		j.cached = ad
	}

	if j.status == StatusProcessing {
		live := ad.Copy()
		live.Set("run_duration", PrettyDuration(j.clock.Since(j.startTime)))
		return live
	}

	return ad
}
