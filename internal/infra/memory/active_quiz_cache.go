package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizhost/internal/domain"
)

const activeKey = "active"

// ActiveQuizCache keeps the active quiz snapshot in process with a TTL.
type ActiveQuizCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu         sync.RWMutex
	entry      *cachedQuiz
	generation uint64
}

type cachedQuiz struct {
	active    domain.ActiveQuiz
	expiresAt time.Time
}

func NewActiveQuizCache(ttl time.Duration) *ActiveQuizCache {
	return &ActiveQuizCache{ttl: ttl, clock: time.Now}
}

func (c *ActiveQuizCache) GetActive(ctx context.Context, load func(context.Context) (domain.ActiveQuiz, error)) (domain.ActiveQuiz, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}
	if active, ok := c.lookup(); ok {
		return active, nil
	}

	result, err, _ := c.sf.Do(activeKey, func() (interface{}, error) {
		if active, ok := c.lookup(); ok {
			return active, nil
		}

		c.mu.RLock()
		generation := c.generation
		c.mu.RUnlock()

		active, err := load(ctx)
		if err != nil {
			return domain.ActiveQuiz{}, err
		}

		c.mu.Lock()
		// an invalidation during the load makes this snapshot stale
		if generation == c.generation {
			c.entry = &cachedQuiz{active: active, expiresAt: c.clock().Add(c.ttlWithJitter())}
		}
		c.mu.Unlock()
		return active, nil
	})
	if err != nil {
		return domain.ActiveQuiz{}, err
	}
	return result.(domain.ActiveQuiz), nil
}

// Invalidate drops the snapshot; the next GetActive reloads.
func (c *ActiveQuizCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.entry = nil
	c.generation++
	c.mu.Unlock()
	c.sf.Forget(activeKey)
	return nil
}

func (c *ActiveQuizCache) lookup() (domain.ActiveQuiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry != nil && c.entry.expiresAt.After(c.clock()) {
		return c.entry.active, true
	}
	return domain.ActiveQuiz{}, false
}

func (c *ActiveQuizCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
