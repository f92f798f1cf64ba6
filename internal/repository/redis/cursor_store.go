package redis

import (
	"context"
	"fmt"
	"invoice_router/internal/repository"

	"github.com/redis/go-redis/v9"
)

var _ repository.CursorStore = (*CursorStore)(nil)

const keyPrefix = "dispatch:cursor:"

// CursorStore keeps round-robin cursors in Redis. INCR is atomic on the
// server, so any number of router processes can share one team's cursor.
type CursorStore struct {
	client redis.UniversalClient
}

func NewCursorStore(client redis.UniversalClient) *CursorStore {
	return &CursorStore{client: client}
}

func Dial(addr, password string, db int) *CursorStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &CursorStore{client: rdb}
}

func (s *CursorStore) Advance(ctx context.Context, teamID string) (uint64, error) {
	next, err := s.client.Incr(ctx, cursorKey(teamID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cursor advance for team %s: %w", teamID, err)
	}
	if next < 1 {
		return 0, fmt.Errorf("redis cursor for team %s is corrupt: %d", teamID, next)
	}
	return uint64(next - 1), nil
}

func (s *CursorStore) Reset(ctx context.Context, teamID string) error {
	if err := s.client.Del(ctx, cursorKey(teamID)).Err(); err != nil {
		return fmt.Errorf("redis cursor reset for team %s: %w", teamID, err)
	}
	return nil
}

func (s *CursorStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *CursorStore) Close() error {
	return s.client.Close()
}

func cursorKey(teamID string) string {
	return keyPrefix + teamID
}
