// Package scheduler runs one-shot deferred tasks that can be cancelled by
// key. A task carries only its key; what firing means is decided by the
// Handler bound on the consuming side.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Handler runs when a scheduled key fires.
type Handler func(ctx context.Context, key string) error

type Scheduler interface {
	// Schedule arms key to fire after delay, replacing any pending task
	// under the same key.
	Schedule(ctx context.Context, key string, delay time.Duration) error
	// Cancel disarms key. Cancelling an unknown or already-fired key is a no-op.
	Cancel(ctx context.Context, key string) error
}

// TimerScheduler keeps tasks in process with time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler Handler
	OnError func(key string, err error)
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: map[string]*time.Timer{}}
}

// Handle binds the function run for every fired key.
func (s *TimerScheduler) Handle(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *TimerScheduler) Schedule(_ context.Context, key string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A replaced or cancelled timer must not run.
		if s.timers[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		h := s.handler
		s.mu.Unlock()

		if h == nil {
			return
		}
		if err := h(context.Background(), key); err != nil && s.OnError != nil {
			s.OnError(key, err)
		}
	})
	s.timers[key] = timer
	return nil
}

func (s *TimerScheduler) Cancel(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	return nil
}

// Pending reports how many tasks are armed.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Manual records armed keys and fires them only when told to.
type Manual struct {
	mu      sync.Mutex
	armed   map[string]time.Duration
	handler Handler
}

func NewManual() *Manual {
	return &Manual{armed: map[string]time.Duration{}}
}

func (m *Manual) Handle(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Manual) Schedule(_ context.Context, key string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed[key] = delay
	return nil
}

func (m *Manual) Cancel(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, key)
	return nil
}

// Fire runs and disarms key. It reports false when nothing was armed.
func (m *Manual) Fire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	_, ok := m.armed[key]
	delete(m.armed, key)
	h := m.handler
	m.mu.Unlock()
	if !ok || h == nil {
		return ok, nil
	}
	return true, h(ctx, key)
}

// FireAnyway runs the handler for key even when it is not armed, which is
// what a stale task delivered by a queue looks like.
func (m *Manual) FireAnyway(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.armed, key)
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, key)
}

func (m *Manual) Armed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.armed[key]
	return ok
}

// Delay returns the delay key was armed with.
func (m *Manual) Delay(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed[key]
}
