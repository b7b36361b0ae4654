package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates cache miss.
var ErrCacheMiss = errors.New("cache miss")

// DecisionCache caches routing decisions behind an in-process TTL LRU with
// an optional Redis second level. Lookups and inserts are safe for
// concurrent fan-out branches.
type DecisionCache struct {
	local  *lruCache
	redis  *redis.Client
	config CacheConfig
	logger *zap.Logger
}

// NewDecisionCache creates a decision cache. rdb may be nil; the Redis
// level is used only when the config enables it and a client is supplied.
func NewDecisionCache(cfg CacheConfig, rdb *redis.Client, logger *zap.Logger) *DecisionCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionCache{
		local:  newLRUCache(cfg.MaxEntries, cfg.TTL),
		redis:  rdb,
		config: cfg,
		logger: logger,
	}
}

// Get retrieves a cached decision.
func (c *DecisionCache) Get(ctx context.Context, key string) (*RoutingDecision, error) {
	if dec, ok := c.local.get(key); ok {
		return dec, nil
	}

	if c.config.EnableRedis && c.redis != nil {
		data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		if err == nil {
			var dec RoutingDecision
			if err := json.Unmarshal(data, &dec); err == nil {
				c.local.set(key, &dec)
				return &dec, nil
			}
		}
	}

	return nil, ErrCacheMiss
}

// Set stores a decision.
func (c *DecisionCache) Set(ctx context.Context, key string, dec *RoutingDecision) {
	c.local.set(key, dec)

	if c.config.EnableRedis && c.redis != nil {
		data, err := json.Marshal(dec)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, c.redisKey(key), data, c.config.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis decision cache write failed", zap.Error(err))
		}
	}
}

func (c *DecisionCache) redisKey(key string) string {
	return "route:cache:" + key
}

// lruCache is a doubly-linked LRU with per-entry TTL.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode
}

type lruNode struct {
	key       string
	decision  *RoutingDecision
	expiresAt time.Time
	prev      *lruNode
	next      *lruNode
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruNode),
	}
}

func (c *lruCache) get(key string) (*RoutingDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.items, key)
		return nil, false
	}

	c.moveToHead(node)
	return node.decision, true
}

func (c *lruCache) set(key string, dec *RoutingDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.decision = dec
		node.expiresAt = time.Now().Add(c.ttl)
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{
		key:       key,
		decision:  dec,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = node
	c.addToHead(node)
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *lruCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *lruCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
