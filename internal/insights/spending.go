package insights

import (
	"math"
	"sort"
	"strconv"

	"medtrack-service/internal/models"
)

// BuildSpendingSummary aggregates every purchase (medication or not) into
// merchant and calendar-month totals with wallet-share fractions.
func (e *Engine) BuildSpendingSummary(purchases []models.Purchase) models.SpendingSummary {
	merchants := make(map[int64]*models.MerchantSpend)
	months := make(map[string]*models.MonthSpend)
	var totals models.SpendTotals

	for _, p := range purchases {
		if p.UnitPrice == nil {
			continue
		}
		lineTotal := *p.UnitPrice * p.Quantity
		if lineTotal <= 0 {
			continue
		}

		monthKey := p.Date.Format("2006-01")
		month, ok := months[monthKey]
		if !ok {
			month = &models.MonthSpend{Month: monthKey}
			months[monthKey] = month
		}
		merchant, ok := merchants[p.MerchantID]
		if !ok {
			merchant = &models.MerchantSpend{MerchantID: p.MerchantID, MerchantName: p.MerchantName}
			merchants[p.MerchantID] = merchant
		}

		month.Total += lineTotal
		merchant.Total += lineTotal
		totals.Overall += lineTotal
		if p.IsMedication {
			month.MedicationTotal += lineTotal
			merchant.MedicationTotal += lineTotal
			totals.Medication += lineTotal
		} else {
			month.OtherTotal += lineTotal
			merchant.OtherTotal += lineTotal
			totals.Other += lineTotal
		}
	}

	byMonth := make([]models.MonthSpend, 0, len(months))
	for _, m := range months {
		byMonth = append(byMonth, roundMonth(*m))
	}
	sort.Slice(byMonth, func(i, j int) bool { return byMonth[i].Month < byMonth[j].Month })

	byMerchant := make([]models.MerchantSpend, 0, len(merchants))
	for _, m := range merchants {
		byMerchant = append(byMerchant, roundMerchant(*m))
	}
	sort.Slice(byMerchant, func(i, j int) bool {
		if byMerchant[i].Total != byMerchant[j].Total {
			return byMerchant[i].Total > byMerchant[j].Total
		}
		return byMerchant[i].MerchantID < byMerchant[j].MerchantID
	})

	// Wallet share only exists with nonzero spend; an all-zero history yields
	// an empty mapping rather than a division by zero.
	walletShare := make(map[string]float64, len(byMerchant))
	if totals.Overall > 0 {
		for _, m := range byMerchant {
			if m.Total > 0 {
				walletShare[strconv.FormatInt(m.MerchantID, 10)] = m.Total / totals.Overall
			}
		}
	}

	var momDelta *float64
	if len(byMonth) >= 2 {
		delta := round2(byMonth[len(byMonth)-1].Total - byMonth[len(byMonth)-2].Total)
		momDelta = &delta
	}

	var medShare float64
	if totals.Overall > 0 {
		medShare = math.Round(totals.Medication / totals.Overall * 100)
	}

	return models.SpendingSummary{
		ByMerchant:          byMerchant,
		ByMonth:             byMonth,
		WalletShare:         walletShare,
		MonthOverMonthDelta: momDelta,
		Totals: models.SpendTotals{
			Medication: round2(totals.Medication),
			Other:      round2(totals.Other),
			Overall:    round2(totals.Overall),
		},
		MedicationSharePercent: medShare,
	}
}

// BuildSpendingInsights derives the spending section observations from a
// summary: medication wallet share, the month-over-month trend, and the top
// merchant.
func (e *Engine) BuildSpendingInsights(summary models.SpendingSummary) []models.SpendingInsight {
	insights := []models.SpendingInsight{}

	medRecs := []string{}
	if summary.MedicationSharePercent >= 70 {
		medRecs = append(medRecs, "optimize_medication_spend")
	}
	insights = append(insights, models.SpendingInsight{
		Type:   "spending",
		Metric: "medication_share",
		Values: map[string]interface{}{
			"medication": summary.Totals.Medication,
			"overall":    summary.Totals.Overall,
			"percent":    summary.MedicationSharePercent,
		},
		Recommendations: medRecs,
	})

	if len(summary.ByMonth) >= 2 {
		prev := summary.ByMonth[len(summary.ByMonth)-2]
		latest := summary.ByMonth[len(summary.ByMonth)-1]
		delta := round2(latest.Total - prev.Total)

		direction := "stayed flat"
		if delta > 0 {
			direction = "increased"
		} else if delta < 0 {
			direction = "decreased"
		}

		var percent *float64
		if prev.Total > 0 {
			pct := math.Round(math.Abs(delta) / prev.Total * 100)
			percent = &pct
		}

		trendRecs := []string{}
		if delta > 0 {
			trendRecs = append(trendRecs, "review_recent_transactions")
		}
		insights = append(insights, models.SpendingInsight{
			Type:   "spending",
			Metric: "monthly_trend",
			Values: map[string]interface{}{
				"previous": prev,
				"latest":   latest,
				"delta":    delta,
				"percent":  percent,
			},
			Direction:       direction,
			Recommendations: trendRecs,
		})
	}

	if len(summary.ByMerchant) > 0 {
		insights = append(insights, models.SpendingInsight{
			Type:            "spending",
			Metric:          "top_merchant",
			Values:          map[string]interface{}{"merchant": summary.ByMerchant[0]},
			Recommendations: []string{"request_loyalty_savings"},
		})
	}

	return insights
}

func roundMonth(m models.MonthSpend) models.MonthSpend {
	m.Total = round2(m.Total)
	m.MedicationTotal = round2(m.MedicationTotal)
	m.OtherTotal = round2(m.OtherTotal)
	return m
}

func roundMerchant(m models.MerchantSpend) models.MerchantSpend {
	m.Total = round2(m.Total)
	m.MedicationTotal = round2(m.MedicationTotal)
	m.OtherTotal = round2(m.OtherTotal)
	return m
}
