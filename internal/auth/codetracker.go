package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "email_code:"

// CodeTracker records when a verification code stops being acceptable.
// The code on the user row stays the source of truth; the tracker only adds expiry.
type CodeTracker interface {
	Track(ctx context.Context, code, userID string, ttl time.Duration) error
	// Valid reports whether code is still live and bound to userID.
	Valid(ctx context.Context, code, userID string) (bool, error)
	Forget(ctx context.Context, code string) error
}

// RedisCodeTracker stores code → user id with a Redis expiry.
type RedisCodeTracker struct {
	cache *redis.Client
}

// NewRedisCodeTracker builds a tracker on an existing client.
func NewRedisCodeTracker(cache *redis.Client) *RedisCodeTracker {
	return &RedisCodeTracker{cache: cache}
}

// Track stores the code with a TTL.
func (t *RedisCodeTracker) Track(ctx context.Context, code, userID string, ttl time.Duration) error {
	return t.cache.Set(ctx, codeKeyPrefix+code, userID, ttl).Err()
}

// Valid checks that the key still exists and belongs to userID.
func (t *RedisCodeTracker) Valid(ctx context.Context, code, userID string) (bool, error) {
	owner, err := t.cache.Get(ctx, codeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

// Forget removes the code.
func (t *RedisCodeTracker) Forget(ctx context.Context, code string) error {
	return t.cache.Del(ctx, codeKeyPrefix+code).Err()
}

type trackedCode struct {
	userID    string
	expiresAt time.Time
}

// MemoryCodeTracker is the single-process tracker used when Redis is not configured.
type MemoryCodeTracker struct {
	mu    sync.Mutex
	codes map[string]trackedCode
	now   func() time.Time
}

// NewMemoryCodeTracker builds an empty in-process tracker.
func NewMemoryCodeTracker() *MemoryCodeTracker {
	return &MemoryCodeTracker{codes: make(map[string]trackedCode), now: time.Now}
}

// Track stores the code and prunes expired entries.
func (t *MemoryCodeTracker) Track(_ context.Context, code, userID string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for k, v := range t.codes {
		if !now.Before(v.expiresAt) {
			delete(t.codes, k)
		}
	}
	t.codes[code] = trackedCode{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

// Valid reports whether code is live and bound to userID.
func (t *MemoryCodeTracker) Valid(_ context.Context, code, userID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.codes[code]
	if !ok || !t.now().Before(entry.expiresAt) {
		return false, nil
	}
	return entry.userID == userID, nil
}

// Forget removes the code.
func (t *MemoryCodeTracker) Forget(_ context.Context, code string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.codes, code)
	return nil
}
