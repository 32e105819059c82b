// Package module defines the transfer-module boundary: pluggable movers
// that implement the actual byte transfer for one or more URL schemes,
// and the registry mapping schemes to them.
package module

import (
	"portage/internal/logger"
	"portage/internal/record"
	"sync"

	"go.uber.org/zap"
)

// ExitNoRetry and above signal a permanent failure; the broker never
// reschedules such an attempt.
const ExitNoRetry = 255

// A Transfer is one started, cancellable attempt at moving data.
type Transfer interface {
	// Progress yields progress records until the attempt ends. A record
	// carrying an error response marker terminates the stream early.
	Progress() <-chan *record.Record

	// Wait blocks until the attempt finishes and returns its exit code.
	Wait() int

	// Stop aborts the attempt. It is safe to call from another
	// goroutine, concurrently with Progress and Wait, and causes Wait
	// to return promptly.
	Stop()
}

type Module interface {
	Name() string
	Protocols() []string
	Info() *record.Record

	// Transfer starts an asynchronous attempt for the given job spec.
	Transfer(spec *record.Record) (Transfer, error)
}

// Registry maps URL schemes to the module that handles them. It is
// populated at startup and effectively read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]Module)}
}

// Register claims m's protocols. A scheme already claimed by another
// module stays with its first registrant.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range m.Protocols() {
		if _, ok := r.schemes[p]; ok {
			logger.Log.Warn("protocol already registered, not registering",
				zap.String("protocol", p),
				zap.String("module", m.Name()))
			continue
		}

		logger.Log.Info("registering protocol",
			zap.String("protocol", p),
			zap.String("module", m.Name()))
		r.schemes[p] = m
	}
}

func (r *Registry) Lookup(scheme string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.schemes[scheme]
	return m, ok
}

// Modules returns the distinct registered modules.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Module]bool)
	var out []Module
	for _, m := range r.schemes {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}

	return out
}

func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemes) == 0
}
