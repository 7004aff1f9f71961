//go:build integration

package bucket_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"linkage/internal/ratelimit/models"
	"linkage/internal/ratelimit/store/bucket"
	"linkage/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = bucket.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.redis.FlushAll(ctx)
	s.Require().NoError(err)
}

func budgetKey(identifier string) string {
	return models.NewKey(models.ClassDetect, models.ScopeTenant, identifier).String()
}

func (s *RedisStoreSuite) TestAllowConsumesWindow() {
	ctx := context.Background()
	key := budgetKey("tenant-allow")

	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, key, 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(3, res.Limit)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, key, 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.GreaterOrEqual(res.RetryAfter, 1)
	s.True(res.ResetAt.After(time.Now()))
}

func (s *RedisStoreSuite) TestAllowNCostSemantics() {
	ctx := context.Background()
	key := budgetKey("tenant-cost")

	res, err := s.store.AllowN(ctx, key, 2, 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(1, res.Remaining)

	// Cost 2 no longer fits; the window must be left untouched.
	res, err = s.store.AllowN(ctx, key, 2, 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	count, err := s.store.GetCurrentCount(ctx, key)
	s.Require().NoError(err)
	s.Equal(2, count)

	// A single unit still fits.
	res, err = s.store.AllowN(ctx, key, 1, 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	key := budgetKey("tenant-slide")
	window := 500 * time.Millisecond

	res, err := s.store.AllowN(ctx, key, 2, 2, window)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.store.Allow(ctx, key, 2, window)
	s.Require().NoError(err)
	s.False(res.Allowed)

	time.Sleep(window + 100*time.Millisecond)

	res, err = s.store.Allow(ctx, key, 2, window)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(1, res.Remaining)
}

func (s *RedisStoreSuite) TestKeyCarriesTTL() {
	ctx := context.Background()
	key := budgetKey("tenant-ttl")

	_, err := s.store.Allow(ctx, key, 5, time.Minute)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()
	key := budgetKey("tenant-reset")

	_, err := s.store.AllowN(ctx, key, 3, 3, time.Minute)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, key, 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	err = s.store.Reset(ctx, key)
	s.Require().NoError(err)

	res, err = s.store.Allow(ctx, key, 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(2, res.Remaining)
}

// TestConcurrentAllowNeverOverspends verifies the Lua script is atomic:
// many goroutines racing on one window must be granted exactly the budget.
func (s *RedisStoreSuite) TestConcurrentAllowNeverOverspends() {
	ctx := context.Background()
	key := budgetKey("tenant-race")
	const goroutines = 50
	const limit = 10

	var wg sync.WaitGroup
	var allowed atomic.Int32
	var denied atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, key, limit, time.Minute)
			if err != nil {
				return
			}
			if res.Allowed {
				allowed.Add(1)
			} else {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(limit), allowed.Load())
	s.Equal(int32(goroutines-limit), denied.Load())

	count, err := s.store.GetCurrentCount(ctx, key)
	s.Require().NoError(err)
	s.Equal(limit, count)
}

func (s *RedisStoreSuite) TestIsolatedKeys() {
	ctx := context.Background()
	keyA := budgetKey("tenant-a")
	keyB := budgetKey("tenant-b")

	_, err := s.store.AllowN(ctx, keyA, 3, 3, time.Minute)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, keyB, 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(2, res.Remaining)
}
