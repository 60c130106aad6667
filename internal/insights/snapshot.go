package insights

import (
	"context"
	"math"

	"medtrack-service/internal/models"

	"go.uber.org/zap"
)

// Snapshot runs the full batch pipeline over a user's transactions and
// assembles the sections into one bundle. Partial failures (malformed items,
// reference fetch problems, unknown filter skus) are recorded in the returned
// report; they never abort the snapshot.
func (e *Engine) Snapshot(ctx context.Context, user models.User, transactions []models.Transaction, opts SnapshotOptions) (*models.Snapshot, *RunReport) {
	now := e.now()
	report := &RunReport{}

	purchases, malformed := Normalize(transactions)
	report.Malformed = malformed
	for _, m := range malformed {
		e.logger.Warn("Skipped malformed transaction item", zap.String("error", m.Error()))
	}

	profiles := e.BuildProfiles(purchases, now)
	metrics, refWarning := e.BuildPriceMetrics(ctx, profiles)
	report.ReferenceWarning = refWarning

	snapshot := &models.Snapshot{
		User:        user,
		GeneratedAt: now,
		Sections: models.Sections{
			Medications:     e.medicationSection(profiles, metrics),
			Alerts:          e.alertSection(profiles, metrics),
			Spending:        e.spendingSection(purchases),
			PriceBenchmarks: e.benchmarkSection(profiles, metrics, refWarning != nil),
		},
	}

	if opts.PriceSKU != "" {
		section, filterErr := e.priceHistorySection(ctx, purchases, opts.PriceSKU)
		snapshot.Sections.PriceHistory = section
		report.FilterError = filterErr
	}

	return snapshot, report
}

func (e *Engine) medicationSection(profiles []models.MedicationProfile, metrics map[string]models.PriceMetrics) models.MedicationSection {
	section := models.MedicationSection{Insights: []models.MedicationInsight{}}
	if len(profiles) == 0 {
		section.Message = "no_transactions"
		return section
	}

	for _, profile := range profiles {
		m := metrics[profile.Key]
		section.Insights = append(section.Insights, models.MedicationInsight{
			Type: "medication",
			Medication: models.MedicationIdentity{
				Name:          profile.Name,
				Key:           profile.Key,
				SKU:           profile.SKU,
				IngredientKey: profile.IngredientKey,
			},
			Status: profile.Status,
			Timing: models.RefillTiming{
				LastPurchaseDate: profile.LastPurchaseDate,
				NextRefillDate:   profile.PredictedNextRefillDate,
				DaysRemaining:    profile.DaysRemaining,
			},
			Merchant: models.MerchantRef{
				ID:   profile.MerchantID,
				Name: profile.MerchantName,
			},
			Price:          m,
			TotalPurchases: profile.TotalPurchases,
			Flags: models.MedicationFlags{
				PriceSpike:  e.isPriceSpike(m),
				Overdue:     profile.Status == models.RefillStatusOverdue,
				Approaching: profile.Status == models.RefillStatusApproaching,
				Overpriced:  m.Reference != nil && m.Reference.Overpriced,
			},
			Recommendations: e.Recommendations(profile, m),
		})
	}
	return section
}

func (e *Engine) alertSection(profiles []models.MedicationProfile, metrics map[string]models.PriceMetrics) models.AlertSection {
	section := models.AlertSection{Insights: e.BuildAlerts(profiles, metrics)}
	if len(profiles) == 0 {
		section.Message = "no_transactions"
	}
	return section
}

func (e *Engine) spendingSection(purchases []models.Purchase) models.SpendingSection {
	if len(purchases) == 0 {
		return models.SpendingSection{Insights: []models.SpendingInsight{}, Message: "no_transactions"}
	}
	summary := e.BuildSpendingSummary(purchases)
	return models.SpendingSection{
		Insights: e.BuildSpendingInsights(summary),
		Summary:  &summary,
	}
}

func (e *Engine) benchmarkSection(profiles []models.MedicationProfile, metrics map[string]models.PriceMetrics, degraded bool) models.BenchmarkSection {
	section := models.BenchmarkSection{Insights: e.BuildBenchmarks(profiles, metrics)}
	if degraded {
		section.Warnings = []string{"reference price data unavailable; benchmarks may be stale or missing"}
	}
	if len(profiles) == 0 {
		section.Message = "no_transactions"
	}
	return section
}

// priceHistorySection selects one medication's purchase history at assembly
// time. It reads the already-computed purchase sequence and never mutates
// shared analytics state. An unknown sku yields an empty section plus a
// recorded filter error, not a snapshot failure.
func (e *Engine) priceHistorySection(ctx context.Context, purchases []models.Purchase, sku string) (*models.PriceHistorySection, *models.InvalidSkuFilterError) {
	section := &models.PriceHistorySection{
		Identifier: sku,
		History:    []models.PriceHistoryPoint{},
	}

	normalized := NormalizeMedicationName(sku)
	for _, p := range purchases {
		if p.SKU != sku && p.NormalizedName != normalized {
			continue
		}
		section.History = append(section.History, models.PriceHistoryPoint{
			Date:         p.Date,
			Price:        p.UnitPrice,
			Quantity:     p.Quantity,
			MerchantID:   p.MerchantID,
			MerchantName: p.MerchantName,
		})
	}

	if len(section.History) == 0 {
		section.Message = "no_history"
		return section, &models.InvalidSkuFilterError{SKU: sku}
	}

	section.Stats = priceHistoryStats(section.History)
	section.Reference = e.historyReference(ctx, sku, section.History)
	return section, nil
}

// historyReference resolves the benchmark entry for a filtered history,
// trying the raw identifier first and its normalized form second. Lookup
// failures leave the reference nil; the metrics pass already reported them.
func (e *Engine) historyReference(ctx context.Context, sku string, history []models.PriceHistoryPoint) *models.ReferencePrice {
	if e.ref == nil {
		return nil
	}

	var entry *models.ReferencePriceEntry
	for _, key := range []string{sku, NormalizeMedicationName(sku)} {
		if key == "" {
			continue
		}
		if found, _ := e.ref.GetReference(ctx, key); found != nil {
			entry = found
			break
		}
	}
	if entry == nil {
		return nil
	}
	amount, ok := entry.Amount()
	if !ok {
		return nil
	}

	ref := &models.ReferencePrice{
		Amount: amount,
		Source: e.ref.SourceName(),
		Code:   entry.Code,
		Min:    entry.Min,
		Mode:   entry.Mode,
		Max:    entry.Max,
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Price != nil {
			ref.Overpriced = *history[i].Price > amount*e.cfg.OverpriceMultiplier
			break
		}
	}
	return ref
}

func priceHistoryStats(history []models.PriceHistoryPoint) *models.PriceHistoryStats {
	var priced []models.PriceHistoryPoint
	for _, point := range history {
		if point.Price != nil {
			priced = append(priced, point)
		}
	}
	if len(priced) == 0 {
		return nil
	}
	if len(priced) == 1 {
		return &models.PriceHistoryStats{Direction: "single_point", Points: 1}
	}

	first, last := priced[0], priced[len(priced)-1]
	delta := round2(*last.Price - *first.Price)
	direction := "flat"
	if delta > 0 {
		direction = "increase"
	} else if delta < 0 {
		direction = "decrease"
	}

	var percent *float64
	if *first.Price > 0 {
		pct := math.Round(delta / *first.Price * 100)
		percent = &pct
	}

	return &models.PriceHistoryStats{
		Direction:      direction,
		AbsoluteChange: delta,
		PercentChange:  percent,
		Points:         len(priced),
	}
}
