package genlock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is a best-effort distributed lock keyed by request fingerprint. It
// keeps two service instances from generating the same lesson at the same
// time; the storage-level unique constraint stays the authority when the
// lock is skipped or expires mid-generation.
type Mutex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMutex builds a fingerprint mutex on an injected Redis client.
func NewMutex(client *redis.Client, prefix string, ttl time.Duration) (*Mutex, error) {
	if client == nil {
		return nil, errors.New("genlock requires a redis client")
	}
	if ttl <= 0 {
		return nil, errors.New("genlock requires a positive ttl")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "lessonforge:genlock"
	}
	return &Mutex{client: client, prefix: prefix, ttl: ttl}, nil
}

// TryAcquire attempts to take the lock for the fingerprint. It returns a
// release func and true on success, and (nil, false) when the lock is held
// elsewhere or Redis is unreachable.
func (m *Mutex) TryAcquire(ctx context.Context, fingerprint string) (func(), bool) {
	if m == nil {
		return nil, false
	}
	key := m.prefix + ":" + fingerprint
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil || !ok {
		return nil, false
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, m.client, []string{key}, token).Result()
	}
	return release, true
}
