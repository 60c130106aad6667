package insights

import (
	"context"
	"math"

	"medtrack-service/internal/models"
)

// BuildPriceMetrics computes the price history, latest/average prices, and
// reference comparison for every profile, keyed by profile key. A reference
// fetch failure is returned as a soft warning; metrics for all medications are
// still produced with nil references.
func (e *Engine) BuildPriceMetrics(ctx context.Context, profiles []models.MedicationProfile) (map[string]models.PriceMetrics, error) {
	metrics := make(map[string]models.PriceMetrics, len(profiles))
	var refWarning error

	for _, profile := range profiles {
		m := priceMetricsFromHistory(profile.Purchases)

		entry, err := e.lookupReference(ctx, profile)
		if err != nil && refWarning == nil {
			refWarning = err
		}
		if entry != nil {
			if amount, ok := entry.Amount(); ok {
				ref := &models.ReferencePrice{
					Amount: amount,
					Source: e.ref.SourceName(),
					Code:   entry.Code,
					Min:    entry.Min,
					Mode:   entry.Mode,
					Max:    entry.Max,
				}
				if m.Latest != nil {
					ref.Overpriced = *m.Latest > amount*e.cfg.OverpriceMultiplier
				}
				m.Reference = ref
			}
		}

		metrics[profile.Key] = m
	}

	return metrics, refWarning
}

func priceMetricsFromHistory(purchases []models.Purchase) models.PriceMetrics {
	history := make([]models.PricePoint, 0, len(purchases))
	var sum float64
	for _, p := range purchases {
		if p.UnitPrice == nil {
			continue
		}
		history = append(history, models.PricePoint{Date: p.Date, Price: *p.UnitPrice})
		sum += *p.UnitPrice
	}

	m := models.PriceMetrics{History: history}
	if len(history) == 0 {
		return m
	}

	latest := history[len(history)-1].Price
	average := round2(sum / float64(len(history)))
	m.Latest = &latest
	m.Average = &average
	return m
}

// lookupReference tries the sku, then the normalized name, then the
// ingredient key.
func (e *Engine) lookupReference(ctx context.Context, profile models.MedicationProfile) (*models.ReferencePriceEntry, error) {
	if e.ref == nil {
		return nil, nil
	}

	var firstErr error
	for _, key := range []string{profile.SKU, profile.Name, profile.IngredientKey} {
		if key == "" {
			continue
		}
		entry, err := e.ref.GetReference(ctx, key)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, firstErr
}

// BuildBenchmarks emits the price_benchmarks section entries for profiles
// with a resolved reference price.
func (e *Engine) BuildBenchmarks(profiles []models.MedicationProfile, metrics map[string]models.PriceMetrics) []models.PriceBenchmark {
	benchmarks := make([]models.PriceBenchmark, 0, len(profiles))
	for _, profile := range profiles {
		m := metrics[profile.Key]
		if m.Reference == nil || m.Latest == nil {
			continue
		}

		diff := round2(*m.Latest - m.Reference.Amount)
		var percent *float64
		if m.Reference.Amount > 0 {
			pct := math.Round(diff / m.Reference.Amount * 100)
			percent = &pct
		}

		recs := []string{}
		if m.Reference.Overpriced {
			recs = append(recs, models.RecommendComparePrices)
		}

		benchmarks = append(benchmarks, models.PriceBenchmark{
			Type:       "price-benchmark",
			Medication: profile.Name,
			SKU:        profile.SKU,
			Overpriced: m.Reference.Overpriced,
			Metrics: models.BenchmarkMetrics{
				LatestPrice:       *m.Latest,
				ReferencePrice:    m.Reference.Amount,
				Difference:        diff,
				PercentDifference: percent,
				Source:            m.Reference.Source,
			},
			Recommendations: recs,
		})
	}
	return benchmarks
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
