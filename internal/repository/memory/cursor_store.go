package memory

import (
	"context"
	"sync"
)

// CursorStore keeps one counter per team behind its own mutex, so teams do
// not contend with each other.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[string]*teamCursor
}

type teamCursor struct {
	mu    sync.Mutex
	value uint64
}

func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]*teamCursor),
	}
}

func (s *CursorStore) Advance(ctx context.Context, teamID string) (uint64, error) {
	c := s.cursor(teamID)

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.value
	c.value++
	return previous, nil
}

func (s *CursorStore) Reset(ctx context.Context, teamID string) error {
	c := s.cursor(teamID)

	c.mu.Lock()
	c.value = 0
	c.mu.Unlock()

	return nil
}

func (s *CursorStore) Peek(teamID string) uint64 {
	c := s.cursor(teamID)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (s *CursorStore) cursor(teamID string) *teamCursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cursors[teamID]
	if !ok {
		c = &teamCursor{}
		s.cursors[teamID] = c
	}
	return c
}
