package insights

import (
	"context"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/models"
	"medtrack-service/internal/util"

	"go.uber.org/zap"
)

// ReferenceLookup resolves external benchmark prices for medications.
// Implemented by the refprice cache; failures degrade to nil lookups.
type ReferenceLookup interface {
	GetReference(ctx context.Context, skuOrName string) (*models.ReferencePriceEntry, error)
	SourceName() string
}

// Engine runs the batch insight pipeline over a user's purchase history.
// It is stateless between runs: profiles, metrics, and alerts are rebuilt in
// full from the purchase sequence so stale cadence state cannot survive.
type Engine struct {
	cfg    config.AnalyticsConfig
	ref    ReferenceLookup
	now    func() time.Time
	logger *zap.Logger
}

// NewEngine creates an insight engine. The clock is injected so snapshots are
// reproducible in tests; pass nil for wall-clock time.
func NewEngine(cfg config.AnalyticsConfig, ref ReferenceLookup, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		cfg:    cfg,
		ref:    ref,
		now:    now,
		logger: util.GetLogger(),
	}
}

// SnapshotOptions control optional snapshot sections.
type SnapshotOptions struct {
	// PriceSKU selects a single medication's purchase history for the
	// price_history section.
	PriceSKU string
}

// RunReport carries the recoverable conditions recorded during a run.
type RunReport struct {
	Malformed        []*models.MalformedTransactionError
	ReferenceWarning error
	FilterError      *models.InvalidSkuFilterError
}
