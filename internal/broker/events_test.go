package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"medtrack-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageRoutesSyncRequested(t *testing.T) {
	event := models.SyncRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeSyncRequested,
			Timestamp: time.Now().UTC(),
		},
		ExternalUserID: "user-1",
		MerchantIDs:    []int64{44, 45},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	handler := NewEventHandler()
	var got *models.SyncRequestedEvent
	handler.OnSyncRequested(func(_ context.Context, e *models.SyncRequestedEvent) error {
		got = e
		return nil
	})

	err = handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.ExternalUserID)
	assert.Equal(t, []int64{44, 45}, got.MerchantIDs)
}

func TestHandleMessageIgnoresOwnEvents(t *testing.T) {
	event := models.SyncCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeSyncCompleted,
			Timestamp: time.Now().UTC(),
		},
		ExternalUserID: "user-1",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	handler := NewEventHandler()
	called := false
	handler.OnSyncRequested(func(context.Context, *models.SyncRequestedEvent) error {
		called = true
		return nil
	})

	err = handler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	handler := NewEventHandler()
	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
