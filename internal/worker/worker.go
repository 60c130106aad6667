package worker

import (
	"context"

	"medtrack-service/internal/broker"
	"medtrack-service/internal/models"
	"medtrack-service/internal/service"
	"medtrack-service/internal/util"

	"go.uber.org/zap"
)

// SyncWorker processes sync requests arriving over the event stream, letting
// the downstream assistant queue refreshes out of band.
type SyncWorker struct {
	consumer       *broker.Consumer
	eventHandler   *broker.EventHandler
	insightService *service.InsightService
	logger         *zap.Logger
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(consumer *broker.Consumer, insightService *service.InsightService) *SyncWorker {
	w := &SyncWorker{
		consumer:       consumer,
		insightService: insightService,
		logger:         util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSyncRequested(w.handleSyncRequested)
	w.eventHandler = eventHandler

	return w
}

// Start begins consuming sync request events
func (w *SyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Sync worker started")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *SyncWorker) Stop() {
	if err := w.consumer.Close(); err != nil {
		w.logger.Error("Failed to close consumer", zap.Error(err))
	}
}

func (w *SyncWorker) handleSyncRequested(ctx context.Context, event *models.SyncRequestedEvent) error {
	w.logger.Info("Handling sync request",
		zap.String("event_id", event.EventID),
		zap.String("external_user_id", event.ExternalUserID))

	resp, err := w.insightService.Sync(ctx, &service.SyncRequest{
		ExternalUserID: event.ExternalUserID,
		Source:         event.Source,
		MerchantIDs:    event.MerchantIDs,
		Limit:          event.Limit,
	})
	if err != nil {
		// Transport failures are not retryable by redelivery; log and move on
		// so the consumer does not wedge on a dead source.
		w.logger.Error("Queued sync failed", zap.Error(err))
		return nil
	}

	w.logger.Info("Queued sync complete",
		zap.String("external_user_id", resp.User.ExternalUserID),
		zap.Int("merchants", len(resp.Summary)))
	return nil
}
