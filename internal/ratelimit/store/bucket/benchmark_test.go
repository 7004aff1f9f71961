package bucket

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkAllowN measures single-threaded throughput.
func BenchmarkAllowN(b *testing.B) {
	store := New()
	ctx := context.Background()

	for b.Loop() {
		_, _ = store.AllowN(ctx, "detect:tenant:bench", 1, 1000, time.Minute)
	}
}

// BenchmarkAllowN_Parallel measures concurrent throughput on one hot key.
func BenchmarkAllowN_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.AllowN(ctx, "detect:tenant:bench", 1, 1000, time.Minute)
		}
	})
}

// BenchmarkAllowN_HighCardinality measures performance with many unique keys.
func BenchmarkAllowN_HighCardinality(b *testing.B) {
	store := New()
	ctx := context.Background()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("read:ip:10.0.%d.%d", (i/256)%256, i%256)
		_, _ = store.AllowN(ctx, key, 1, 100, time.Minute)
	}
}

// BenchmarkAllowN_HighCardinality_Parallel measures concurrent
// high-cardinality performance across shards.
func BenchmarkAllowN_HighCardinality_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()
	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			key := fmt.Sprintf("read:ip:10.0.%d.%d", (i/256)%256, i%256)
			_, _ = store.AllowN(ctx, key, 1, 100, time.Minute)
		}
	})
}

// BenchmarkShardDistribution reports how evenly keys spread across shards.
func BenchmarkShardDistribution(b *testing.B) {
	store := New()
	ctx := context.Background()

	for i := range 10000 {
		key := fmt.Sprintf("detect:tenant:%d", i)
		_, _ = store.AllowN(ctx, key, 1, 100, time.Minute)
	}

	total, perShard := store.Stats()
	b.Logf("total buckets: %d", total)

	var lo, hi int
	for i, count := range perShard {
		if i == 0 || count < lo {
			lo = count
		}
		if count > hi {
			hi = count
		}
	}
	b.Logf("shard distribution: min=%d, max=%d, spread=%.2f%%",
		lo, hi, float64(hi-lo)/float64(total)*100)
}

// BenchmarkLRUEviction measures eviction overhead under key churn.
func BenchmarkLRUEviction(b *testing.B) {
	store := New(WithMaxBucketsPerShard(100))
	ctx := context.Background()

	for i := 0; b.Loop(); i++ {
		key := fmt.Sprintf("detect:tenant:evict:%d", i)
		_, _ = store.AllowN(ctx, key, 1, 100, time.Minute)
	}
}
