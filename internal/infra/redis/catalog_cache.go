package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/hhkuy/sums-qz/internal/catalog"
	"github.com/hhkuy/sums-qz/internal/domain"
)

// CatalogCache caches catalog payloads in Redis and falls back to the
// wrapped source on a miss. Keys:
//
//	catalog:topics        -> JSON topic tree
//	catalog:set:{setRef}  -> JSON question records
type CatalogCache struct {
	client *redis.Client
	source catalog.Gateway
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, source catalog.Gateway, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) FetchTopics(ctx context.Context) ([]domain.Topic, error) {
	key := c.topicsKey()

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var topics []domain.Topic
		if err := json.Unmarshal(raw, &topics); err == nil {
			return topics, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var topics []domain.Topic
			if err := json.Unmarshal(raw, &topics); err == nil {
				return topics, nil
			}
		}

		topics, err := c.source.FetchTopics(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, topics)
		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Topic), nil
}

func (c *CatalogCache) FetchQuestions(ctx context.Context, setRef string) ([]domain.QuestionRecord, error) {
	key := c.setKey(setRef)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var records []domain.QuestionRecord
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var records []domain.QuestionRecord
			if err := json.Unmarshal(raw, &records); err == nil {
				return records, nil
			}
		}

		records, err := c.source.FetchQuestions(ctx, setRef)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (c *CatalogCache) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
}

func (c *CatalogCache) topicsKey() string {
	return "catalog:topics"
}

func (c *CatalogCache) setKey(setRef string) string {
	return "catalog:set:" + setRef
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
