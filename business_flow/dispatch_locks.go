package businessflow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyedLocker hands out short-lived exclusive locks by key. With a redis client
// the lock is shared by every instance: it is taken with SETNX and a random token,
// its TTL is refreshed while held and it is released only by the token holder.
// Without a client it only guards the current process.
type KeyedLocker struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration

	mu   sync.Mutex
	held map[string]struct{}
}

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// NewKeyedLocker creates a locker; rc may be nil
func NewKeyedLocker(rc *redis.Client, prefix string, ttl time.Duration) *KeyedLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &KeyedLocker{
		rc:     rc,
		prefix: prefix,
		ttl:    ttl,
		held:   make(map[string]struct{}),
	}
}

// TryLock acquires key without waiting. The returned release func is nil when ok is false.
func (l *KeyedLocker) TryLock(ctx context.Context, key string) (release func(), ok bool, err error) {
	full := l.prefix + key

	if l.rc != nil {
		return l.tryRedisLock(ctx, full)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[full]; busy {
		return nil, false, nil
	}
	l.held[full] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, full)
		l.mu.Unlock()
	}, true, nil
}

func (l *KeyedLocker) tryRedisLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = releaseScript.Run(context.Background(), l.rc, []string{key}, token).Err()
		})
	}, true, nil
}

// keepAlive extends the TTL of a held lock every third of its lifetime until stop
// is closed or the lock turns out to belong to someone else
func (l *KeyedLocker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := refreshScript.Run(ctx, l.rc, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

func campaignLockKey(campaignID uint) string {
	return "campaign:" + strconv.FormatUint(uint64(campaignID), 10) + ":dispatch"
}
