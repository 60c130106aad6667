package models

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Transaction is a raw purchase record after merchant-format adaptation.
// Immutable once ingested.
type Transaction struct {
	ExternalID   string            `json:"external_id"`
	MerchantID   int64             `json:"merchant_id"`
	MerchantName string            `json:"merchant_name"`
	OrderID      string            `json:"order_id,omitempty"`
	OrderDate    time.Time         `json:"order_date"`
	Status       string            `json:"status"`
	Total        *float64          `json:"total"`
	Source       string            `json:"source"`
	Items        []TransactionItem `json:"items"`
}

// TransactionItem is a single line item within a transaction.
type TransactionItem struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku,omitempty"`
	Price    *float64 `json:"price"`
	Quantity float64  `json:"quantity"`
}

// Purchase is one normalized item line derived from a transaction.
type Purchase struct {
	SKU            string    `json:"sku,omitempty"`
	Name           string    `json:"name"`
	MerchantID     int64     `json:"merchant_id"`
	MerchantName   string    `json:"merchant_name"`
	Date           time.Time `json:"date"`
	UnitPrice      *float64  `json:"unit_price"`
	Quantity       float64   `json:"quantity"`
	IsMedication   bool      `json:"is_medication"`
	NormalizedName string    `json:"normalized_name,omitempty"`
	IngredientKey  string    `json:"ingredient_key,omitempty"`
}

// Key identifies the medication group a purchase belongs to: sku when present,
// otherwise the normalized name.
func (p Purchase) Key() string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.NormalizedName
}

// Refill statuses
const (
	RefillStatusOnTrack     = "on_track"
	RefillStatusApproaching = "approaching"
	RefillStatusOverdue     = "overdue"
	RefillStatusUnknown     = "unknown"
)

// Alert severities, ordered info < warning < critical
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert categories
const (
	AlertCategoryRefill        = "refill"
	AlertCategoryPrice         = "price"
	AlertCategoryPriceSpike    = "price_spike"
	AlertCategoryDuplicateMeds = "duplicate_medication"
)

// Recommendation codes attached to medication insights
const (
	RecommendRefillNow     = "refill_now"
	RecommendRefillSoon    = "refill_soon"
	RecommendComparePrices = "compare_prices"
)

// MedicationProfile holds the refill-cadence state for one medication.
// Rebuilt fully on every analytics run from the purchase sequence.
type MedicationProfile struct {
	Key           string     `json:"key"`
	SKU           string     `json:"sku,omitempty"`
	Name          string     `json:"name"`
	IngredientKey string     `json:"ingredient_key,omitempty"`
	MerchantID    int64      `json:"merchant_id"`
	MerchantName  string     `json:"merchant_name"`
	Purchases     []Purchase `json:"-"`

	LastPurchaseDate        time.Time `json:"last_purchase_date"`
	PredictedNextRefillDate time.Time `json:"next_refill_date"`
	CadenceDays             float64   `json:"cadence_days"`
	DaysRemaining           int       `json:"days_remaining"`
	Status                  string    `json:"status"`
	TotalPurchases          int       `json:"total_purchases"`
}

// PricePoint is one historical price observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// ReferencePrice is the resolved external benchmark for one medication.
type ReferencePrice struct {
	Amount     float64  `json:"amount"`
	Source     string   `json:"source"`
	Overpriced bool     `json:"overpriced"`
	Code       string   `json:"code,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Mode       *float64 `json:"mode,omitempty"`
	Max        *float64 `json:"max,omitempty"`
}

// PriceMetrics aggregates price state for one medication.
type PriceMetrics struct {
	Latest    *float64        `json:"latest"`
	Average   *float64        `json:"average"`
	History   []PricePoint    `json:"history"`
	Reference *ReferencePrice `json:"reference"`
}

// ReferencePriceEntry is one row of the external reference price table.
type ReferencePriceEntry struct {
	Code           string   `json:"code"`
	Description    string   `json:"description"`
	NormalizedName string   `json:"description_norm"`
	Min            *float64 `json:"min"`
	Mode           *float64 `json:"mode"`
	Max            *float64 `json:"max"`
}

// Amount resolves the benchmark amount: mode, then min, then max.
func (e ReferencePriceEntry) Amount() (float64, bool) {
	for _, v := range []*float64{e.Mode, e.Min, e.Max} {
		if v != nil && *v > 0 {
			return *v, true
		}
	}
	return 0, false
}

// Alert is one actionable condition derived from medication/price state.
type Alert struct {
	Type            string                 `json:"type"`
	Category        string                 `json:"category"`
	Severity        string                 `json:"severity"`
	SKU             string                 `json:"sku,omitempty"`
	Medication      string                 `json:"medication"`
	Data            map[string]interface{} `json:"data"`
	Recommendations []string               `json:"recommendations"`
}

// MerchantSpend is the spending total for one merchant.
type MerchantSpend struct {
	MerchantID      int64   `json:"merchant_id"`
	MerchantName    string  `json:"merchant_name"`
	Total           float64 `json:"total"`
	MedicationTotal float64 `json:"medication_total"`
	OtherTotal      float64 `json:"other_total"`
}

// MonthSpend is the spending total for one calendar month (YYYY-MM).
type MonthSpend struct {
	Month           string  `json:"month"`
	Total           float64 `json:"total"`
	MedicationTotal float64 `json:"medication_total"`
	OtherTotal      float64 `json:"other_total"`
}

// SpendTotals are the overall spend totals across all purchases.
type SpendTotals struct {
	Medication float64 `json:"medication"`
	Other      float64 `json:"other"`
	Overall    float64 `json:"overall"`
}

// SpendingSummary is the merchant/month spending breakdown.
type SpendingSummary struct {
	ByMerchant             []MerchantSpend    `json:"by_merchant"`
	ByMonth                []MonthSpend       `json:"by_month"`
	WalletShare            map[string]float64 `json:"wallet_share"`
	MonthOverMonthDelta    *float64           `json:"month_over_month_delta"`
	Totals                 SpendTotals        `json:"totals"`
	MedicationSharePercent float64            `json:"medication_share_percent"`
}

// User identifies the owner of a purchase history.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ExternalUserID string `json:"external_user_id"`
}

// NewUser derives a stable numeric id from the external user id.
func NewUser(externalUserID, name string) User {
	h := fnv.New64a()
	_, _ = h.Write([]byte(externalUserID))
	return User{
		ID:             int64(h.Sum64() % 1_000_000_000),
		Name:           name,
		ExternalUserID: externalUserID,
	}
}

// MerchantSyncSummary reports the outcome of syncing one merchant.
type MerchantSyncSummary struct {
	MerchantID   int64  `json:"merchant_id"`
	MerchantName string `json:"merchant_name"`
	Fetched      int    `json:"fetched"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Error        string `json:"error,omitempty"`
}

// merchantCatalog maps known Knot merchant ids to display names.
var merchantCatalog = map[int64]string{
	44:  "Amazon",
	45:  "Walmart",
	12:  "Target",
	165: "Costco",
	19:  "Doordash",
	40:  "Instacart",
	36:  "Ubereats",
}

// MerchantName returns the display name for a merchant id.
func MerchantName(id int64) string {
	if name, ok := merchantCatalog[id]; ok {
		return name
	}
	return fmt.Sprintf("Merchant %d", id)
}
