package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizhost/internal/domain"
)

// ActiveQuizCache shares the active quiz snapshot between instances through Redis.
// Snapshots are stored as: SET quiz:active:{version} <json>
// Invalidation bumps:     INCR quiz:active:version
// so a load racing an invalidation writes under a key nobody reads again.
type ActiveQuizCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewActiveQuizCache(client *redis.Client, ttl time.Duration) *ActiveQuizCache {
	return &ActiveQuizCache{client: client, ttl: ttl}
}

func (c *ActiveQuizCache) GetActive(ctx context.Context, load func(context.Context) (domain.ActiveQuiz, error)) (domain.ActiveQuiz, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}

	version, err := c.version(ctx)
	if err != nil {
		log.Printf("active quiz cache version: %v", err)
		return load(ctx)
	}
	key := snapshotKey(version)
	if active, ok := c.read(ctx, key); ok {
		return active, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if active, ok := c.read(ctx, key); ok {
			return active, nil
		}

		active, err := load(ctx)
		if err != nil {
			return domain.ActiveQuiz{}, err
		}

		data, err := json.Marshal(active)
		if err != nil {
			return active, nil
		}
		if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("active quiz cache set: %v", err)
		}
		return active, nil
	})
	if err != nil {
		return domain.ActiveQuiz{}, err
	}
	return result.(domain.ActiveQuiz), nil
}

// Invalidate moves every instance to a fresh snapshot key.
func (c *ActiveQuizCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}

const versionKey = "quiz:active:version"

func snapshotKey(version int64) string {
	return "quiz:active:" + strconv.FormatInt(version, 10)
}

func (c *ActiveQuizCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *ActiveQuizCache) read(ctx context.Context, key string) (domain.ActiveQuiz, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.ActiveQuiz{}, false
	}
	var active domain.ActiveQuiz
	if err := json.Unmarshal(data, &active); err != nil {
		return domain.ActiveQuiz{}, false
	}
	return active, true
}

func (c *ActiveQuizCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
