package insights

import (
	"math"
	"sort"
	"time"

	"medtrack-service/internal/models"
)

// BuildProfiles groups medication purchases by sku (falling back to the
// normalized name) and computes refill cadence state for each group. Profiles
// are returned sorted by key so output order is deterministic.
func (e *Engine) BuildProfiles(purchases []models.Purchase, now time.Time) []models.MedicationProfile {
	groups := make(map[string][]models.Purchase)
	var order []string
	for _, p := range purchases {
		if !p.IsMedication {
			continue
		}
		key := p.Key()
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}
	sort.Strings(order)

	profiles := make([]models.MedicationProfile, 0, len(order))
	for _, key := range order {
		profiles = append(profiles, e.buildProfile(key, groups[key], now))
	}
	return profiles
}

func (e *Engine) buildProfile(key string, group []models.Purchase, now time.Time) models.MedicationProfile {
	// Input arrives date-sorted from the normalizer; keep the invariant anyway.
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Date.Before(group[j].Date)
	})

	last := group[len(group)-1]

	cadence, resolved := e.cadenceDays(group)
	predicted := last.Date.Add(time.Duration(cadence * 24 * float64(time.Hour)))
	daysRemaining := wholeDaysUntil(predicted, now)

	status := models.RefillStatusUnknown
	if resolved {
		switch {
		case daysRemaining < 0:
			status = models.RefillStatusOverdue
		case daysRemaining <= e.cfg.ApproachingThresholdDays:
			status = models.RefillStatusApproaching
		default:
			status = models.RefillStatusOnTrack
		}
	}

	return models.MedicationProfile{
		Key:                     key,
		SKU:                     last.SKU,
		Name:                    last.Name,
		IngredientKey:           last.IngredientKey,
		MerchantID:              last.MerchantID,
		MerchantName:            last.MerchantName,
		Purchases:               group,
		LastPurchaseDate:        last.Date,
		PredictedNextRefillDate: predicted,
		CadenceDays:             cadence,
		DaysRemaining:           daysRemaining,
		Status:                  status,
		TotalPurchases:          len(group),
	}
}

// cadenceDays returns the typical days between refills and whether the value
// came from observed history. Single-purchase histories fall back to a
// quantity-based days-supply estimate and stay unresolved until a second
// purchase disambiguates the interval.
func (e *Engine) cadenceDays(group []models.Purchase) (float64, bool) {
	if len(group) < 2 {
		return float64(e.estimateDaysSupply(group[len(group)-1].Quantity)), false
	}

	gaps := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		gaps = append(gaps, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}
	return medianGap(gaps), true
}

// medianGap is the median of the distinct gap values. A run of identical gaps
// counts once, so a single outlier interval cannot be drowned out, and one
// missed refill cannot permanently inflate the prediction the way a mean would.
func medianGap(gaps []float64) float64 {
	distinct := make([]float64, 0, len(gaps))
	seen := make(map[float64]bool, len(gaps))
	for _, g := range gaps {
		if !seen[g] {
			seen[g] = true
			distinct = append(distinct, g)
		}
	}
	sort.Float64s(distinct)

	n := len(distinct)
	if n%2 == 1 {
		return distinct[n/2]
	}
	return (distinct[n/2-1] + distinct[n/2]) / 2
}

// estimateDaysSupply guesses a refill interval from package size when no
// purchase history exists yet.
func (e *Engine) estimateDaysSupply(quantity float64) int {
	switch {
	case quantity >= 120:
		return 90
	case quantity >= 90:
		return 60
	case quantity >= 60:
		return 45
	case quantity >= 30:
		return 30
	case quantity >= 14:
		return 21
	default:
		return e.cfg.DefaultCadenceDays
	}
}

// wholeDaysUntil is the signed whole-day distance from now to the target,
// floored so any time past the target counts as overdue.
func wholeDaysUntil(target, now time.Time) int {
	return int(math.Floor(target.Sub(now).Hours() / 24))
}
