package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store for tests and single-process deployments.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	now        func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. The clock decides which prior
// challenges are still unexpired when a new one is issued.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		challenges: make(map[string]*Challenge),
		now:        now,
	}
}

func (s *MemoryStore) Issue(_ context.Context, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, c := range s.challenges {
		if c.UserID == ch.UserID && c.Purpose == ch.Purpose && !c.Used && !c.Expired(now) {
			c.Used = true
		}
	}

	cp := *ch
	s.challenges[ch.ID] = &cp
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, userID string, purpose Purpose) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Challenge
	for _, c := range s.challenges {
		if c.UserID != userID || c.Purpose != purpose || c.Used {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrChallengeNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, id string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return 0, ErrChallengeNotFound
	}
	if c.Used || c.Attempts >= limit {
		return 0, ErrStale
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return ErrChallengeNotFound
	}
	if c.Used {
		return ErrStale
	}
	c.Used = true
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.challenges {
		if c.ExpiresAt.Before(before) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

// DeleteByUser removes every challenge owned by userID.
func (s *MemoryStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.challenges {
		if c.UserID == userID {
			delete(s.challenges, id)
		}
	}
	return nil
}

// Len returns the number of stored challenges.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}
