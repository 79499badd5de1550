package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es la variante de un solo proceso del RedisLimiter.
// Las ventanas viejas las expira go-cache.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		cache:  gocache.New(window, 2*window),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())
	ttl := winStart.Add(l.Window).Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	var hits int64 = 1
	if v, found := l.cache.Get(k); found {
		hits = v.(int64) + 1
	}
	l.cache.Set(k, hits, ttl)

	return decide(hits, l.Max, ttl, l.Window), nil
}
