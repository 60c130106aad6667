package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/broker"
	"medtrack-service/internal/ingest"
	"medtrack-service/internal/insights"
	"medtrack-service/internal/models"
	"medtrack-service/internal/redisclient"
	"medtrack-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const syncLockTTL = 30 * time.Second

// ErrSyncInProgress is returned when another sync already holds a user's lock.
var ErrSyncInProgress = errors.New("a sync for this user is already in progress")

// UserStateCache is the slice of the redis client the service depends on.
type UserStateCache interface {
	LoadUserState(ctx context.Context, externalUserID string) (*redisclient.UserState, error)
	StoreUserState(ctx context.Context, state *redisclient.UserState) error
	AcquireSyncLock(ctx context.Context, externalUserID string, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, externalUserID string) error
}

// InsightService orchestrates transaction syncs and snapshot generation.
type InsightService struct {
	cache           UserStateCache
	source          *ingest.Source
	engine          *insights.Engine
	eventPublisher  *broker.EventPublisher
	knotCfg         config.KnotConfig
	defaultUserName string
	logger          *zap.Logger
}

// NewInsightService creates a new insight service
func NewInsightService(
	cache UserStateCache,
	source *ingest.Source,
	engine *insights.Engine,
	eventPublisher *broker.EventPublisher,
	knotCfg config.KnotConfig,
) *InsightService {
	return &InsightService{
		cache:           cache,
		source:          source,
		engine:          engine,
		eventPublisher:  eventPublisher,
		knotCfg:         knotCfg,
		defaultUserName: "MedTrack Demo User",
		logger:          util.GetLogger(),
	}
}

// SyncRequest represents a request to refresh a user's transactions
type SyncRequest struct {
	ExternalUserID string  `json:"external_user_id,omitempty"`
	Source         string  `json:"source,omitempty" binding:"omitempty,oneof=local mock dev"`
	MerchantIDs    []int64 `json:"merchant_ids,omitempty"`
	Limit          int     `json:"limit,omitempty"`
}

// SyncResponse represents the per-merchant outcome of a sync run
type SyncResponse struct {
	User    models.User                  `json:"user"`
	Summary []models.MerchantSyncSummary `json:"summary"`
}

// Sync fetches raw transactions per merchant, adapts them to the uniform
// format, merges them into the user's cached history by external id, and
// persists the result. A failing merchant is reported in the summary without
// aborting the others; the sync only fails outright when every merchant's
// transport is unavailable.
func (s *InsightService) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	ctx, span := util.StartSpan(ctx, "InsightService.Sync")
	defer span.End()

	externalUserID := req.ExternalUserID
	if externalUserID == "" {
		externalUserID = s.knotCfg.DefaultUserID
	}
	source := req.Source
	if source == "" {
		source = s.knotCfg.Source
	}
	merchantIDs := req.MerchantIDs
	if len(merchantIDs) == 0 {
		merchantIDs = s.knotCfg.DefaultMerchantIDs
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.knotCfg.SyncLimit
	}

	util.SyncsTotal.Inc()

	acquired, err := s.cache.AcquireSyncLock(ctx, externalUserID, syncLockTTL)
	switch {
	case err != nil:
		// A lock-store hiccup should not block syncing; say so and carry on.
		s.logger.Warn("Failed to acquire sync lock, proceeding without it",
			zap.String("external_user_id", externalUserID),
			zap.Error(err))
	case !acquired:
		return nil, ErrSyncInProgress
	default:
		defer func() {
			if err := s.cache.ReleaseSyncLock(ctx, externalUserID); err != nil {
				s.logger.Warn("Failed to release sync lock", zap.Error(err))
			}
		}()
	}

	state, err := s.cache.LoadUserState(ctx, externalUserID)
	if err != nil {
		s.logger.Warn("Failed to load cached state, starting fresh", zap.Error(err))
	}
	if state == nil {
		state = &redisclient.UserState{User: models.NewUser(externalUserID, s.defaultUserName)}
	}

	existing := make(map[string]models.Transaction, len(state.Transactions))
	for _, tx := range state.Transactions {
		existing[tx.ExternalID] = tx
	}

	summary := make([]models.MerchantSyncSummary, 0, len(merchantIDs))
	var firstFetchErr error
	anySucceeded := false

	for _, merchantID := range merchantIDs {
		entry := models.MerchantSyncSummary{
			MerchantID:   merchantID,
			MerchantName: models.MerchantName(merchantID),
		}

		raws, err := s.source.FetchRawTransactions(ctx, source, externalUserID, merchantID, limit)
		if err != nil {
			util.SyncFailuresTotal.WithLabelValues(source).Inc()
			s.logger.Error("Merchant sync failed",
				zap.Int64("merchant_id", merchantID),
				zap.String("source", source),
				zap.Error(err))
			entry.Error = err.Error()
			summary = append(summary, entry)
			if firstFetchErr == nil {
				firstFetchErr = err
			}
			continue
		}
		anySucceeded = true
		entry.Fetched = len(raws)
		util.TransactionsFetchedTotal.Add(float64(len(raws)))

		adapter := ingest.AdapterFor(merchantID)
		for _, raw := range raws {
			tx, err := adapter.Adapt(raw, merchantID, source)
			if err != nil {
				s.logger.Warn("Skipped unadaptable transaction",
					zap.Int64("merchant_id", merchantID),
					zap.Error(err))
				continue
			}
			if _, ok := existing[tx.ExternalID]; ok {
				entry.Updated++
			} else {
				entry.Created++
			}
			existing[tx.ExternalID] = *tx
		}
		summary = append(summary, entry)
	}

	if !anySucceeded && firstFetchErr != nil {
		return nil, firstFetchErr
	}

	transactions := make([]models.Transaction, 0, len(existing))
	for _, tx := range existing {
		transactions = append(transactions, tx)
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		if !transactions[i].OrderDate.Equal(transactions[j].OrderDate) {
			return transactions[i].OrderDate.Before(transactions[j].OrderDate)
		}
		return transactions[i].ExternalID < transactions[j].ExternalID
	})
	state.Transactions = transactions

	if err := s.cache.StoreUserState(ctx, state); err != nil {
		return nil, err
	}

	s.logger.Info("Sync complete",
		zap.String("external_user_id", externalUserID),
		zap.String("source", source),
		zap.Int("transactions", len(transactions)))

	event := &models.SyncCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSyncCompleted,
			Timestamp: time.Now().UTC(),
		},
		ExternalUserID: externalUserID,
		Summary:        summary,
		PurchaseCount:  countItems(transactions),
	}
	if err := s.eventPublisher.PublishSyncCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SyncCompleted event", zap.Error(err))
	}

	return &SyncResponse{User: state.User, Summary: summary}, nil
}

// Snapshot generates the insight bundle from whatever purchase history is
// currently cached. A user that has never synced gets an empty snapshot, not
// an error, so downstream callers always receive the stable shape.
func (s *InsightService) Snapshot(ctx context.Context, externalUserID string, opts insights.SnapshotOptions) (*models.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "InsightService.Snapshot")
	defer span.End()

	if externalUserID == "" {
		externalUserID = s.knotCfg.DefaultUserID
	}

	start := time.Now()
	defer func() {
		util.SnapshotLatency.Observe(time.Since(start).Seconds())
	}()

	state, err := s.cache.LoadUserState(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &redisclient.UserState{User: models.NewUser(externalUserID, s.defaultUserName)}
	}

	snapshot, report := s.engine.Snapshot(ctx, state.User, state.Transactions, opts)

	util.SnapshotsGeneratedTotal.Inc()
	util.MalformedItemsTotal.Add(float64(len(report.Malformed)))
	if report.ReferenceWarning != nil {
		util.ReferenceFetchFailuresTotal.Inc()
		s.logger.Warn("Reference price benchmarking degraded", zap.Error(report.ReferenceWarning))
	}
	if report.FilterError != nil {
		s.logger.Warn("Price history filter matched nothing",
			zap.String("sku", report.FilterError.SKU))
	}

	for _, alert := range snapshot.Sections.Alerts.Insights {
		util.AlertsEmittedTotal.WithLabelValues(alert.Category, alert.Severity).Inc()
		if alert.Severity != models.SeverityCritical {
			continue
		}
		event := &models.AlertRaisedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeAlertRaised,
				Timestamp: time.Now().UTC(),
			},
			ExternalUserID: externalUserID,
			Alert:          alert,
		}
		if err := s.eventPublisher.PublishAlertRaised(ctx, event); err != nil {
			s.logger.Error("Failed to publish AlertRaised event", zap.Error(err))
		}
	}

	return snapshot, nil
}

// SnapshotJSON renders a snapshot in its wire form. Used by callers that need
// the exact bytes, e.g. for byte-level reproducibility checks.
func (s *InsightService) SnapshotJSON(ctx context.Context, externalUserID string, opts insights.SnapshotOptions) ([]byte, error) {
	snapshot, err := s.Snapshot(ctx, externalUserID, opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshot)
}

func countItems(transactions []models.Transaction) int {
	var n int
	for _, tx := range transactions {
		n += len(tx.Items)
	}
	return n
}
