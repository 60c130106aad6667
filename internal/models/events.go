package models

import "time"

// Event types
const (
	EventTypeSyncRequested = "SYNC_REQUESTED"
	EventTypeSyncCompleted = "SYNC_COMPLETED"
	EventTypeAlertRaised   = "ALERT_RAISED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncRequestedEvent asks the service to refresh a user's transactions
type SyncRequestedEvent struct {
	BaseEvent
	ExternalUserID string  `json:"external_user_id"`
	Source         string  `json:"source,omitempty"`
	MerchantIDs    []int64 `json:"merchant_ids,omitempty"`
	Limit          int     `json:"limit,omitempty"`
}

// SyncCompletedEvent published after a sync run finishes
type SyncCompletedEvent struct {
	BaseEvent
	ExternalUserID string                `json:"external_user_id"`
	Summary        []MerchantSyncSummary `json:"summary"`
	PurchaseCount  int                   `json:"purchase_count"`
}

// AlertRaisedEvent published for each critical alert in a snapshot
type AlertRaisedEvent struct {
	BaseEvent
	ExternalUserID string `json:"external_user_id"`
	Alert          Alert  `json:"alert"`
}
