package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmazonAdapter(t *testing.T) {
	raw := json.RawMessage(`{
		"externalId": "amzn-123",
		"orderId": "111-222",
		"dateTime": "2024-02-04T10:30:00Z",
		"orderStatus": "DELIVERED",
		"total": 28.08,
		"items": [
			{"name": "Lisinopril 20mg Tablets", "sku": "LIS20", "price": 9.36, "quantity": 3}
		]
	}`)

	tx, err := AdapterFor(44).Adapt(raw, 44, "dev")
	require.NoError(t, err)

	assert.Equal(t, "amzn-123", tx.ExternalID)
	assert.Equal(t, "111-222", tx.OrderID)
	assert.Equal(t, "Amazon", tx.MerchantName)
	assert.Equal(t, "DELIVERED", tx.Status)
	assert.Equal(t, time.Date(2024, 2, 4, 10, 30, 0, 0, time.UTC), tx.OrderDate)
	require.NotNil(t, tx.Total)
	assert.Equal(t, 28.08, *tx.Total)

	require.Len(t, tx.Items, 1)
	assert.Equal(t, "LIS20", tx.Items[0].SKU)
	assert.Equal(t, 3.0, tx.Items[0].Quantity)
}

func TestWalmartAdapter(t *testing.T) {
	raw := json.RawMessage(`{
		"orderId": "wm-77",
		"orderDate": "2024-03-05",
		"status": "COMPLETED",
		"items": [
			{"description": "Equate Ibuprofen 200mg", "sku": "IBU200", "unitPrice": 4.48, "qty": 2},
			{"name": "Bananas", "price": 1.50}
		]
	}`)

	tx, err := AdapterFor(45).Adapt(raw, 45, "dev")
	require.NoError(t, err)

	assert.Equal(t, "wm-77", tx.ExternalID)
	assert.Equal(t, "Walmart", tx.MerchantName)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), tx.OrderDate)

	require.Len(t, tx.Items, 2)
	assert.Equal(t, "Equate Ibuprofen 200mg", tx.Items[0].Name)
	assert.Equal(t, 2.0, tx.Items[0].Quantity)
	assert.Equal(t, "Bananas", tx.Items[1].Name)
	assert.Equal(t, 1.0, tx.Items[1].Quantity)

	// No declared amount: the total is derived from the line items.
	require.NotNil(t, tx.Total)
	assert.Equal(t, 10.46, *tx.Total)
}

func TestTargetAdapter(t *testing.T) {
	raw := json.RawMessage(`{
		"order_id": "tgt-9",
		"ordered_at": "2024-01-15 08:00:00",
		"status": "shipped",
		"total": 12.99,
		"items": [
			{"name": "up&up Loratadine 10mg", "sku": "LOR10", "price": 12.99, "quantity": 1}
		]
	}`)

	tx, err := AdapterFor(12).Adapt(raw, 12, "local")
	require.NoError(t, err)

	assert.Equal(t, "tgt-9", tx.ExternalID)
	assert.Equal(t, "Target", tx.MerchantName)
	assert.Equal(t, "shipped", tx.Status)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), tx.OrderDate)
}

func TestGenericAdapterProbesKeySpellings(t *testing.T) {
	raw := json.RawMessage(`{
		"external_id": "cost-5",
		"ordered_at": "2024-02-20",
		"status": "complete",
		"amount": 31.98,
		"items": [
			{"name": "Kirkland Acetaminophen 500mg", "sku": "KS500", "price": 15.99, "quantity": 2}
		]
	}`)

	tx, err := AdapterFor(165).Adapt(raw, 165, "dev")
	require.NoError(t, err)

	assert.Equal(t, "cost-5", tx.ExternalID)
	assert.Equal(t, "Costco", tx.MerchantName)
	assert.Equal(t, "complete", tx.Status)
	require.NotNil(t, tx.Total)
	assert.Equal(t, 31.98, *tx.Total)
}

func TestGenericAdapterUnknownMerchant(t *testing.T) {
	raw := json.RawMessage(`{"orderId": "x-1", "orderDate": "2024-02-20", "items": []}`)

	tx, err := AdapterFor(9999).Adapt(raw, 9999, "mock")
	require.NoError(t, err)

	assert.Equal(t, "Merchant 9999", tx.MerchantName)
	assert.Equal(t, "UNKNOWN", tx.Status)
	assert.Nil(t, tx.Total)
}

func TestAdaptRejectsMalformedPayload(t *testing.T) {
	_, err := AdapterFor(44).Adapt(json.RawMessage(`{"items": "nope"}`), 44, "dev")
	assert.Error(t, err)
}

func TestDeriveTotalSkipsUnpricedItems(t *testing.T) {
	tx, err := AdapterFor(9999).Adapt(json.RawMessage(`{
		"order_id": "x-2",
		"ordered_at": "2024-02-20",
		"items": [
			{"name": "A", "price": 5.0, "quantity": 2},
			{"name": "B"}
		]
	}`), 9999, "mock")
	require.NoError(t, err)
	require.NotNil(t, tx.Total)
	assert.Equal(t, 10.0, *tx.Total)
}

func TestParseOrderDateLayouts(t *testing.T) {
	assert.Equal(t, time.Date(2024, 2, 4, 10, 30, 0, 0, time.UTC), parseOrderDate("2024-02-04T10:30:00Z"))
	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), parseOrderDate("2024-02-04"))
	// Unparsable dates fall back to the current time rather than failing the sync.
	assert.False(t, parseOrderDate("not a date").IsZero())
}
