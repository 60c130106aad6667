package models

import "fmt"

// MalformedTransactionError records an item that could not be normalized.
// The item is skipped and the run continues; one bad record never aborts a sync.
type MalformedTransactionError struct {
	TransactionID string
	ItemIndex     int
	Reason        string
}

func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("malformed transaction %s item %d: %s", e.TransactionID, e.ItemIndex, e.Reason)
}

// SourceUnavailableError indicates the ingestion transport failed. Fatal for
// the sync step, but analytics over already-cached purchases stays usable.
type SourceUnavailableError struct {
	Source     string
	MerchantID int64
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable for merchant %d: %v", e.Source, e.MerchantID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// ReferenceFetchError indicates the reference price table could not be
// fetched or parsed. Recovered via the stale-cache fallback, never fatal.
type ReferenceFetchError struct {
	URL string
	Err error
}

func (e *ReferenceFetchError) Error() string {
	return fmt.Sprintf("reference price fetch failed for %s: %v", e.URL, e.Err)
}

func (e *ReferenceFetchError) Unwrap() error { return e.Err }

// InvalidSkuFilterError indicates a price-history filter named a sku with no
// recorded purchases. The snapshot still succeeds with an empty history section.
type InvalidSkuFilterError struct {
	SKU string
}

func (e *InvalidSkuFilterError) Error() string {
	return fmt.Sprintf("no price history for sku %q", e.SKU)
}
