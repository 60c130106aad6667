package insights

import (
	"testing"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		ApproachingThresholdDays: 5,
		OverpriceMultiplier:      1.5,
		PriceSpikeMultiplier:     2.0,
		DefaultCadenceDays:       30,
		DuplicateWindowDays:      14,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func medPurchase(sku string, date time.Time, price float64) models.Purchase {
	return models.Purchase{
		SKU:            sku,
		Name:           sku + " 20mg Tablets",
		MerchantID:     44,
		MerchantName:   "Amazon",
		Date:           date,
		UnitPrice:      &price,
		Quantity:       30,
		IsMedication:   true,
		NormalizedName: NormalizeMedicationName(sku + " 20mg Tablets"),
	}
}

func TestBuildProfilesGrouping(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, fixedClock(day(100)))

	purchases := []models.Purchase{
		medPurchase("AAA", day(0), 10),
		medPurchase("BBB", day(1), 5),
		medPurchase("AAA", day(30), 11),
		medPurchase("BBB", day(20), 5),
	}

	profiles := engine.BuildProfiles(purchases, day(100))
	require.Len(t, profiles, 2)

	// Profiles sorted by key; every purchase lands in exactly one matching group.
	assert.Equal(t, "AAA", profiles[0].Key)
	assert.Equal(t, "BBB", profiles[1].Key)
	assert.Equal(t, 2, profiles[0].TotalPurchases)
	assert.Equal(t, 2, profiles[1].TotalPurchases)
	for _, profile := range profiles {
		for i, p := range profile.Purchases {
			assert.Equal(t, profile.Key, p.SKU)
			if i > 0 {
				assert.False(t, p.Date.Before(profile.Purchases[i-1].Date))
			}
		}
	}
}

func TestBuildProfilesSkipsNonMedication(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, nil)

	grocery := medPurchase("SNACK1", day(0), 3)
	grocery.IsMedication = false

	profiles := engine.BuildProfiles([]models.Purchase{grocery}, day(10))
	assert.Empty(t, profiles)
}

func TestCadenceMedianOfGaps(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, nil)

	// Purchases on days 0, 30, 60, 95: gaps [30, 30, 35], cadence 32.5 days.
	purchases := []models.Purchase{
		medPurchase("LIS20", day(0), 10),
		medPurchase("LIS20", day(30), 10),
		medPurchase("LIS20", day(60), 10),
		medPurchase("LIS20", day(95), 10),
	}

	profiles := engine.BuildProfiles(purchases, day(95))
	require.Len(t, profiles, 1)

	assert.InDelta(t, 32.5, profiles[0].CadenceDays, 1e-9)
	expected := day(95).Add(time.Duration(32.5 * 24 * float64(time.Hour)))
	assert.Equal(t, expected, profiles[0].PredictedNextRefillDate)
}

func TestStatusBoundaries(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, nil)

	// Two purchases 30 days apart; predicted refill on day 60.
	purchases := []models.Purchase{
		medPurchase("IBU200", day(0), 8),
		medPurchase("IBU200", day(30), 8),
	}

	cases := []struct {
		name          string
		now           time.Time
		daysRemaining int
		status        string
	}{
		{"due today is approaching", day(60), 0, models.RefillStatusApproaching},
		{"one day past due is overdue", day(61), -1, models.RefillStatusOverdue},
		{"inside window is approaching", day(55), 5, models.RefillStatusApproaching},
		{"outside window is on track", day(54), 6, models.RefillStatusOnTrack},
		{"long overdue", day(90), -30, models.RefillStatusOverdue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profiles := engine.BuildProfiles(purchases, tc.now)
			require.Len(t, profiles, 1)
			assert.Equal(t, tc.daysRemaining, profiles[0].DaysRemaining)
			assert.Equal(t, tc.status, profiles[0].Status)
		})
	}
}

func TestSinglePurchaseIsUnknown(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, nil)

	// One purchase on record: the default cadence predicts a refill date but
	// the status stays unknown until a second purchase disambiguates it, even
	// when the predicted date is long past.
	purchases := []models.Purchase{medPurchase("MET500", day(0), 12)}

	profiles := engine.BuildProfiles(purchases, day(400))
	require.Len(t, profiles, 1)

	assert.Equal(t, models.RefillStatusUnknown, profiles[0].Status)
	assert.Equal(t, 30.0, profiles[0].CadenceDays)
	assert.Negative(t, profiles[0].DaysRemaining)
}

func TestSinglePurchaseCadenceFromQuantity(t *testing.T) {
	engine := NewEngine(testAnalyticsConfig(), nil, nil)

	p := medPurchase("VITD90", day(0), 15)
	p.Quantity = 90

	profiles := engine.BuildProfiles([]models.Purchase{p}, day(10))
	require.Len(t, profiles, 1)
	assert.Equal(t, 60.0, profiles[0].CadenceDays)
}

func TestMedianGap(t *testing.T) {
	assert.InDelta(t, 32.5, medianGap([]float64{30, 30, 35}), 1e-9)
	assert.InDelta(t, 30, medianGap([]float64{30}), 1e-9)
	assert.InDelta(t, 30, medianGap([]float64{28, 30, 90}), 1e-9)
	assert.InDelta(t, 29, medianGap([]float64{28, 30}), 1e-9)
}
