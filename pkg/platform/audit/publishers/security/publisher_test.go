package security

import (
	"context"
	"fmt"
	"testing"
	"time"

	audit "linkage/pkg/platform/audit"
	"linkage/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_FIFOOrder(t *testing.T) {
	buf := NewRingBuffer(4)

	for i := 0; i < 3; i++ {
		evicted := buf.Enqueue(audit.SecurityEvent{Reason: fmt.Sprintf("event-%d", i)})
		require.False(t, evicted)
	}

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "event-0", batch[0].Reason)
	assert.Equal(t, "event-1", batch[1].Reason)
	assert.Equal(t, "event-2", batch[2].Reason)
	assert.Equal(t, 0, buf.Len())
}

func TestRingBuffer_EvictsOldestWhenFull(t *testing.T) {
	buf := NewRingBuffer(2)

	require.False(t, buf.Enqueue(audit.SecurityEvent{Reason: "first"}))
	require.False(t, buf.Enqueue(audit.SecurityEvent{Reason: "second"}))
	assert.True(t, buf.Enqueue(audit.SecurityEvent{Reason: "third"}), "full buffer must evict")
	assert.EqualValues(t, 1, buf.Dropped())
	assert.Equal(t, 2, buf.Len())

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "second", batch[0].Reason)
	assert.Equal(t, "third", batch[1].Reason)
}

func TestRingBuffer_WrapsAround(t *testing.T) {
	buf := NewRingBuffer(3)

	for cycle := 0; cycle < 5; cycle++ {
		for i := 0; i < 3; i++ {
			require.False(t, buf.Enqueue(audit.SecurityEvent{Reason: fmt.Sprintf("c%d-%d", cycle, i)}))
		}
		batch := buf.DequeueBatch(3)
		require.Len(t, batch, 3)
		assert.Equal(t, fmt.Sprintf("c%d-0", cycle), batch[0].Reason)
	}
	assert.EqualValues(t, 0, buf.Dropped())
}

func TestRingBuffer_DequeueOnEmpty(t *testing.T) {
	buf := NewRingBuffer(2)
	assert.Nil(t, buf.DequeueBatch(5))
	assert.EqualValues(t, 0, buf.Dropped())
}

func TestPublisher_FlushesToStore(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(10*time.Millisecond))
	defer pub.Close()

	pub.Emit(audit.SecurityEvent{
		Subject: "operator-7",
		Action:  string(audit.EventAuthFailed),
		Reason:  "token expired",
		IP:      "203.0.113.9",
	})

	require.Eventually(t, func() bool {
		events, err := store.ListRecent(context.Background(), 10)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventAuthFailed), events[0].Action)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, "203.0.113.9", events[0].IP, "client address survives persistence")
}

func TestPublisher_EmitNeverBlocksWhenFull(t *testing.T) {
	store := memory.NewInMemoryStore()
	// Long interval so the flusher does not race the assertions.
	pub := New(store, WithBufferCapacity(2), WithFlushInterval(time.Hour))

	for i := 0; i < 6; i++ {
		pub.Emit(audit.SecurityEvent{Reason: fmt.Sprintf("burst-%d", i)})
	}

	// Close performs the final drain; only the newest two survive.
	require.NoError(t, pub.Close())

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	reasons := []string{events[0].Reason, events[1].Reason}
	assert.ElementsMatch(t, []string{"burst-4", "burst-5"}, reasons)
}

func TestPublisher_CloseDrains(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(time.Hour))

	for i := 0; i < 10; i++ {
		pub.Emit(audit.SecurityEvent{Reason: fmt.Sprintf("pending-%d", i)})
	}
	require.NoError(t, pub.Close())

	events, err := store.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, events, 10)

	// Second close is a no-op.
	require.NoError(t, pub.Close())
}

func TestPublisher_DefaultsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(10*time.Millisecond))
	defer pub.Close()

	before := time.Now()
	pub.Emit(audit.SecurityEvent{Action: string(audit.EventRateLimitExceeded)})

	require.Eventually(t, func() bool {
		events, err := store.ListRecent(context.Background(), 1)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}
