// Package store keeps run records in memory for the API server.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/qaprobe/models"
)

// Store is an in-memory run registry. Finished runs expire after the TTL.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]*models.Run
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a Store and starts a background goroutine that evicts expired
// runs every five minutes until Close is called.
func New(ttl time.Duration, maxEntries int) *Store {
	s := &Store{
		runs:       make(map[string]*models.Run),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go s.cleanupLoop(5 * time.Minute)
	return s
}

// Create registers a queued run and returns a snapshot of it.
func (s *Store) Create(target, webhookURL string) models.Run {
	run := &models.Run{
		ID:         uuid.NewString(),
		Status:     models.RunQueued,
		Target:     target,
		WebhookURL: webhookURL,
		StartedAt:  s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxEntries > 0 && len(s.runs) >= s.maxEntries {
		s.evictOldestFinishedLocked()
	}
	s.runs[run.ID] = run
	return *run
}

// Get returns a snapshot of the run with id.
func (s *Store) Get(id string) (models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return models.Run{}, false
	}
	return *run, true
}

// Update applies fn to the stored run under the write lock. It reports
// whether the run exists.
func (s *Store) Update(id string, fn func(*models.Run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false
	}
	fn(run)
	return true
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Active returns the number of queued or running runs.
func (s *Store) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, run := range s.runs {
		if !finished(run) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// EvictExpired removes finished runs older than the TTL and returns how many
// were removed.
func (s *Store) EvictExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		if finished(run) && run.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n
}

func (s *Store) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.EvictExpired()
		}
	}
}

// evictOldestFinishedLocked drops the finished run that ended first. Runs
// still in progress are never evicted.
func (s *Store) evictOldestFinishedLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, run := range s.runs {
		if !finished(run) {
			continue
		}
		if oldestID == "" || run.FinishedAt.Before(oldestAt) {
			oldestID, oldestAt = id, run.FinishedAt
		}
	}
	if oldestID != "" {
		delete(s.runs, oldestID)
	}
}

func finished(run *models.Run) bool {
	return run.Status == models.RunCompleted || run.Status == models.RunFailed
}
