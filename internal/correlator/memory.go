package correlator

import (
	"context"
	"net/url"
	"sync"
	"time"
)

type pending struct {
	payload   url.Values
	expiresAt time.Time
}

// MemoryStore keeps pending requests in process memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]pending
	ttl     time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryStore creates a store whose entries live for ttl. A positive
// sweepInterval starts a goroutine that drops expired entries until Close.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]pending),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, payload url.Values) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = pending{payload: clone(payload), expiresAt: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Consume(_ context.Context, id string) (url.Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	delete(s.entries, id)
	if !s.now().Before(p.expiresAt) {
		return nil, notFound(id)
	}
	return p.payload, nil
}

// Len returns the number of entries, expired ones included until swept
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, p := range s.entries {
		if !now.Before(p.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the sweep goroutine and waits for it to exit
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
