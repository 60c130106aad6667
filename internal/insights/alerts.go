package insights

import (
	"fmt"
	"sort"

	"medtrack-service/internal/models"
)

var severityRank = map[string]int{
	models.SeverityCritical: 2,
	models.SeverityWarning:  1,
	models.SeverityInfo:     0,
}

// BuildAlerts derives the alert sequence from medication and price state.
// Pure over its inputs; output order is deterministic: severity descending,
// then sku ascending, then category.
func (e *Engine) BuildAlerts(profiles []models.MedicationProfile, metrics map[string]models.PriceMetrics) []models.Alert {
	alerts := make([]models.Alert, 0, len(profiles))

	for _, profile := range profiles {
		m := metrics[profile.Key]

		switch profile.Status {
		case models.RefillStatusOverdue:
			alerts = append(alerts, models.Alert{
				Type:       "alert",
				Category:   models.AlertCategoryRefill,
				Severity:   models.SeverityCritical,
				SKU:        profile.SKU,
				Medication: profile.Name,
				Data: map[string]interface{}{
					"last_purchase_date": profile.LastPurchaseDate,
					"next_refill_date":   profile.PredictedNextRefillDate,
					"days_remaining":     profile.DaysRemaining,
				},
				Recommendations: []string{models.RecommendRefillNow},
			})
		case models.RefillStatusApproaching:
			alerts = append(alerts, models.Alert{
				Type:       "alert",
				Category:   models.AlertCategoryRefill,
				Severity:   models.SeverityWarning,
				SKU:        profile.SKU,
				Medication: profile.Name,
				Data: map[string]interface{}{
					"next_refill_date": profile.PredictedNextRefillDate,
					"days_until_due":   profile.DaysRemaining,
				},
				Recommendations: []string{models.RecommendRefillSoon},
			})
		}

		if m.Reference != nil && m.Reference.Overpriced {
			alerts = append(alerts, models.Alert{
				Type:       "alert",
				Category:   models.AlertCategoryPrice,
				Severity:   models.SeverityWarning,
				SKU:        profile.SKU,
				Medication: profile.Name,
				Data: map[string]interface{}{
					"latest_price":    *m.Latest,
					"reference_price": m.Reference.Amount,
					"source":          m.Reference.Source,
				},
				Recommendations: []string{models.RecommendComparePrices},
			})
		}

		if e.isPriceSpike(m) {
			alerts = append(alerts, models.Alert{
				Type:       "alert",
				Category:   models.AlertCategoryPriceSpike,
				Severity:   models.SeverityCritical,
				SKU:        profile.SKU,
				Medication: profile.Name,
				Data: map[string]interface{}{
					"latest_price":       *m.Latest,
					"average_price":      *m.Average,
					"last_purchase_date": profile.LastPurchaseDate,
					"merchant_name":      profile.MerchantName,
				},
				Recommendations: []string{models.RecommendComparePrices},
			})
		}
	}

	alerts = append(alerts, e.duplicateMedicationAlerts(profiles)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if severityRank[alerts[i].Severity] != severityRank[alerts[j].Severity] {
			return severityRank[alerts[i].Severity] > severityRank[alerts[j].Severity]
		}
		if alerts[i].SKU != alerts[j].SKU {
			return alerts[i].SKU < alerts[j].SKU
		}
		return alerts[i].Category < alerts[j].Category
	})

	return alerts
}

// isPriceSpike reports whether the latest price exceeds the rolling average by
// the spike multiplier. Requires more than one observation so a lone purchase
// can never spike against itself.
func (e *Engine) isPriceSpike(m models.PriceMetrics) bool {
	return m.Latest != nil && m.Average != nil && len(m.History) > 1 &&
		*m.Latest > *m.Average*e.cfg.PriceSpikeMultiplier
}

// duplicateMedicationAlerts flags different items sharing an active ingredient
// purchased within the duplicate window of each other.
func (e *Engine) duplicateMedicationAlerts(profiles []models.MedicationProfile) []models.Alert {
	byIngredient := make(map[string][]models.Purchase)
	var order []string
	for _, profile := range profiles {
		for _, p := range profile.Purchases {
			if p.IngredientKey == "" {
				continue
			}
			if _, seen := byIngredient[p.IngredientKey]; !seen {
				order = append(order, p.IngredientKey)
			}
			byIngredient[p.IngredientKey] = append(byIngredient[p.IngredientKey], p)
		}
	}
	sort.Strings(order)

	var alerts []models.Alert
	for _, ingredient := range order {
		entries := byIngredient[ingredient]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Date.Before(entries[j].Date)
		})

		for i := 1; i < len(entries); i++ {
			prev, cur := entries[i-1], entries[i]
			daysApart := int(cur.Date.Sub(prev.Date).Hours() / 24)
			if daysApart > e.cfg.DuplicateWindowDays {
				continue
			}
			if prev.SKU == cur.SKU || prev.Name == cur.Name {
				continue
			}
			alerts = append(alerts, models.Alert{
				Type:       "alert",
				Category:   models.AlertCategoryDuplicateMeds,
				Severity:   models.SeverityWarning,
				Medication: ingredient,
				Data: map[string]interface{}{
					"message":     fmt.Sprintf("Multiple %s items purchased within %d days.", ingredient, daysApart),
					"first_item":  prev.Name,
					"second_item": cur.Name,
					"first_date":  prev.Date,
					"second_date": cur.Date,
				},
				Recommendations: []string{"clinical_review"},
			})
		}
	}
	return alerts
}

// Recommendations derives the medication-level recommendation codes from the
// same predicates as the alerts. Refill codes come before price codes.
func (e *Engine) Recommendations(profile models.MedicationProfile, m models.PriceMetrics) []string {
	recs := []string{}
	switch profile.Status {
	case models.RefillStatusOverdue:
		recs = append(recs, models.RecommendRefillNow)
	case models.RefillStatusApproaching:
		recs = append(recs, models.RecommendRefillSoon)
	}
	overpriced := m.Reference != nil && m.Reference.Overpriced
	if overpriced || e.isPriceSpike(m) {
		recs = append(recs, models.RecommendComparePrices)
	}
	return recs
}
