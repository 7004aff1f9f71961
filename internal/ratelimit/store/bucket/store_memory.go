// Package bucket implements sliding window budget counters.
package bucket

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"

	"linkage/internal/ratelimit/models"
)

const (
	shardCount                = 16
	defaultMaxBucketsPerShard = 4096
)

// Store is a sharded in-memory sliding window store. Each shard caps its
// bucket count with LRU eviction so high-cardinality keys cannot grow the
// map without bound. Suitable as the fallback store and for single-node
// deployments; distributed deployments use RedisStore.
type Store struct {
	shards      [shardCount]*shard
	maxPerShard int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	order   *list.List // front = most recently used
}

type window struct {
	key        string
	timestamps []time.Time
	span       time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithMaxBucketsPerShard caps how many keys each shard tracks before LRU
// eviction kicks in. Values below 1 are ignored.
func WithMaxBucketsPerShard(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPerShard = n
		}
	}
}

// New creates an in-memory bucket store.
func New(opts ...Option) *Store {
	s := &Store{maxPerShard: defaultMaxBucketsPerShard}
	for i := range s.shards {
		s.shards[i] = &shard{
			buckets: make(map[string]*list.Element),
			order:   list.New(),
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a single unit is available and consumes it if so.
func (s *Store) Allow(ctx context.Context, key string, limit int, windowSpan time.Duration) (*models.Result, error) {
	return s.AllowN(ctx, key, 1, limit, windowSpan)
}

// AllowN checks if 'cost' units are available and consumes them if so.
// A denied check consumes nothing.
func (s *Store) AllowN(_ context.Context, key string, cost, limit int, windowSpan time.Duration) (*models.Result, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := time.Now()
	w := sh.touch(key, windowSpan, s.maxPerShard)
	w.prune(now)

	if len(w.timestamps)+cost > limit {
		resetAt := now.Add(windowSpan)
		if len(w.timestamps) > 0 {
			resetAt = w.timestamps[0].Add(windowSpan)
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  max(0, limit-len(w.timestamps)),
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}

	for range cost {
		w.timestamps = append(w.timestamps, now)
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.timestamps),
		ResetAt:   w.timestamps[0].Add(windowSpan),
	}, nil
}

// Reset clears the window for a key.
func (s *Store) Reset(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.buckets[key]; ok {
		sh.order.Remove(el)
		delete(sh.buckets, key)
	}
	return nil
}

// GetCurrentCount returns how many units are consumed in the current window.
func (s *Store) GetCurrentCount(_ context.Context, key string) (int, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.buckets[key]
	if !ok {
		return 0, nil
	}
	w := el.Value.(*window)
	w.prune(time.Now())
	return len(w.timestamps), nil
}

// Stats returns the total bucket count and the per-shard distribution.
func (s *Store) Stats() (total int, perShard []int) {
	perShard = make([]int, shardCount)
	for i, sh := range s.shards {
		sh.mu.Lock()
		perShard[i] = len(sh.buckets)
		sh.mu.Unlock()
		total += perShard[i]
	}
	return total, perShard
}

func (s *Store) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// touch returns the window for key, creating it and evicting the least
// recently used entry when the shard is full. Caller holds sh.mu.
func (sh *shard) touch(key string, span time.Duration, maxBuckets int) *window {
	if el, ok := sh.buckets[key]; ok {
		sh.order.MoveToFront(el)
		return el.Value.(*window)
	}

	if sh.order.Len() >= maxBuckets {
		if back := sh.order.Back(); back != nil {
			evicted := back.Value.(*window)
			sh.order.Remove(back)
			delete(sh.buckets, evicted.key)
		}
	}

	w := &window{key: key, span: span}
	sh.buckets[key] = sh.order.PushFront(w)
	return w
}

// prune drops timestamps that have left the window.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
