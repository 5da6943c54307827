package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hhkuy/sums-qz/internal/catalog"
	"github.com/hhkuy/sums-qz/internal/domain"
)

const topicsKey = "topics"

// CatalogCache wraps a catalog source with a TTL cache so repeated selection
// flows do not hammer the content host.
type CatalogCache struct {
	source catalog.Gateway
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	topics    []domain.Topic
	topicsExp time.Time
	sets      map[string]cachedSet
}

type cachedSet struct {
	records   []domain.QuestionRecord
	expiresAt time.Time
}

func NewCatalogCache(source catalog.Gateway, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sets:   make(map[string]cachedSet),
	}
}

func (c *CatalogCache) FetchTopics(ctx context.Context) ([]domain.Topic, error) {
	now := c.clock()

	c.mu.RLock()
	if c.topics != nil && c.topicsExp.After(now) {
		c.mu.RUnlock()
		return c.topics, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(topicsKey, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.topics != nil && c.topicsExp.After(now) {
			c.mu.RUnlock()
			return c.topics, nil
		}
		c.mu.RUnlock()

		topics, err := c.source.FetchTopics(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.topics = topics
		c.topicsExp = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Topic), nil
}

func (c *CatalogCache) FetchQuestions(ctx context.Context, setRef string) ([]domain.QuestionRecord, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.sets[setRef]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.records, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("set:"+setRef, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.sets[setRef]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.records, nil
		}
		c.mu.RUnlock()

		records, err := c.source.FetchQuestions(ctx, setRef)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sets[setRef] = cachedSet{
			records:   records,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRecord), nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticGateway is a catalog backed by in-memory maps (useful for tests/demos).
type StaticGateway struct {
	topics []domain.Topic
	sets   map[string][]domain.QuestionRecord
}

func NewStaticGateway(topics []domain.Topic, sets map[string][]domain.QuestionRecord) *StaticGateway {
	return &StaticGateway{topics: topics, sets: sets}
}

func (g *StaticGateway) FetchTopics(_ context.Context) ([]domain.Topic, error) {
	return g.topics, nil
}

func (g *StaticGateway) FetchQuestions(_ context.Context, setRef string) ([]domain.QuestionRecord, error) {
	records, ok := g.sets[setRef]
	if !ok {
		return nil, domain.ErrCatalogUnavailable
	}
	return records, nil
}
