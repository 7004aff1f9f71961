package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	id "linkage/pkg/domain"
	audit "linkage/pkg/platform/audit"
	"linkage/pkg/platform/audit/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore rejects every append.
type brokenStore struct{}

func (brokenStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unreachable")
}

func (brokenStore) ListByTenant(context.Context, id.TenantID) ([]audit.Event, error) {
	return nil, nil
}

func (brokenStore) ListRecent(context.Context, int) ([]audit.Event, error) {
	return nil, nil
}

func validEvent() audit.ComplianceEvent {
	return audit.ComplianceEvent{
		TenantID:  id.TenantID(uuid.New()),
		ProfileID: "bank-transactions",
		Subject:   "thresholds v3 -> v4",
		Action:    string(audit.EventThresholdUpdated),
		Decision:  "applied",
		Reason:    "quarterly calibration",
		ActorID:   "op-examiner",
	}
}

func TestPublisher_EmitPersistsSynchronously(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	defer pub.Close()

	event := validEvent()
	require.NoError(t, pub.Emit(context.Background(), event))

	// Synchronous semantics: the event is visible the moment Emit returns.
	events, err := store.ListByTenant(context.Background(), event.TenantID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, string(audit.EventThresholdUpdated), events[0].Action)
	assert.Equal(t, "op-examiner", events[0].ActorID)
	assert.Equal(t, "quarterly calibration", events[0].Reason)
}

func TestPublisher_EmitFailsClosed(t *testing.T) {
	pub := New(brokenStore{})
	defer pub.Close()

	err := pub.Emit(context.Background(), validEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compliance audit persistence failed")
}

func TestPublisher_EmitRejectsIncompleteEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	defer pub.Close()

	tests := []struct {
		name   string
		mutate func(*audit.ComplianceEvent)
		want   string
	}{
		{"missing tenant", func(e *audit.ComplianceEvent) { e.TenantID = id.TenantID{} }, "requires TenantID"},
		{"missing action", func(e *audit.ComplianceEvent) { e.Action = "" }, "requires Action"},
		{"missing actor", func(e *audit.ComplianceEvent) { e.ActorID = "" }, "requires ActorID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(&event)

			err := pub.Emit(context.Background(), event)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events, "rejected events never reach the store")
}

func TestPublisher_EmitDefaultsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	defer pub.Close()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), validEvent()))

	events, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
}
