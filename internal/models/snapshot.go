package models

import "time"

// Snapshot is the composed, agent-consumable bundle. Assembled fresh per
// request and never mutated after construction.
type Snapshot struct {
	User        User      `json:"user"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    Sections  `json:"sections"`
}

// Sections groups the snapshot payloads by concern.
type Sections struct {
	Medications     MedicationSection    `json:"medications"`
	Alerts          AlertSection         `json:"alerts"`
	Spending        SpendingSection      `json:"spending"`
	PriceBenchmarks BenchmarkSection     `json:"price_benchmarks"`
	PriceHistory    *PriceHistorySection `json:"price_history,omitempty"`
}

// MedicationInsight is one medication entry in the snapshot.
type MedicationInsight struct {
	Type            string             `json:"type"`
	Medication      MedicationIdentity `json:"medication"`
	Status          string             `json:"status"`
	Timing          RefillTiming       `json:"timing"`
	Merchant        MerchantRef        `json:"merchant"`
	Price           PriceMetrics       `json:"price"`
	TotalPurchases  int                `json:"total_purchases"`
	Flags           MedicationFlags    `json:"flags"`
	Recommendations []string           `json:"recommendations"`
}

type MedicationIdentity struct {
	Name          string `json:"name"`
	Key           string `json:"key"`
	SKU           string `json:"sku,omitempty"`
	IngredientKey string `json:"ingredient_key,omitempty"`
}

type RefillTiming struct {
	LastPurchaseDate time.Time `json:"last_purchase_date"`
	NextRefillDate   time.Time `json:"next_refill_date"`
	DaysRemaining    int       `json:"days_remaining"`
}

type MerchantRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type MedicationFlags struct {
	PriceSpike  bool `json:"price_spike"`
	Overdue     bool `json:"overdue"`
	Approaching bool `json:"approaching"`
	Overpriced  bool `json:"overpriced"`
}

type MedicationSection struct {
	Insights []MedicationInsight `json:"insights"`
	Message  string              `json:"message,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

type AlertSection struct {
	Insights []Alert `json:"insights"`
	Message  string  `json:"message,omitempty"`
}

// SpendingInsight is one derived spending observation (medication share,
// monthly trend, top merchant).
type SpendingInsight struct {
	Type            string                 `json:"type"`
	Metric          string                 `json:"metric"`
	Values          map[string]interface{} `json:"values"`
	Direction       string                 `json:"direction,omitempty"`
	Recommendations []string               `json:"recommendations"`
}

type SpendingSection struct {
	Insights []SpendingInsight `json:"insights"`
	Summary  *SpendingSummary  `json:"summary,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// PriceBenchmark compares one medication's latest price with the reference.
type PriceBenchmark struct {
	Type            string           `json:"type"`
	Medication      string           `json:"medication"`
	SKU             string           `json:"sku,omitempty"`
	Overpriced      bool             `json:"overpriced"`
	Metrics         BenchmarkMetrics `json:"metrics"`
	Recommendations []string         `json:"recommendations"`
}

type BenchmarkMetrics struct {
	LatestPrice       float64  `json:"latest_price"`
	ReferencePrice    float64  `json:"reference_price"`
	Difference        float64  `json:"difference"`
	PercentDifference *float64 `json:"percent_difference"`
	Source            string   `json:"source"`
}

type BenchmarkSection struct {
	Insights []PriceBenchmark `json:"insights"`
	Message  string           `json:"message,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// PriceHistoryPoint is one observation in a filtered price history.
type PriceHistoryPoint struct {
	Date         time.Time `json:"date"`
	Price        *float64  `json:"price"`
	Quantity     float64   `json:"quantity"`
	MerchantID   int64     `json:"merchant_id"`
	MerchantName string    `json:"merchant_name"`
}

// PriceHistoryStats describes the trend across a price history.
type PriceHistoryStats struct {
	Direction      string   `json:"direction"`
	AbsoluteChange float64  `json:"absolute_change"`
	PercentChange  *float64 `json:"percent_change"`
	Points         int      `json:"points"`
}

type PriceHistorySection struct {
	Identifier string              `json:"identifier"`
	History    []PriceHistoryPoint `json:"history"`
	Stats      *PriceHistoryStats  `json:"stats,omitempty"`
	Reference  *ReferencePrice     `json:"reference"`
	Message    string              `json:"message,omitempty"`
}
