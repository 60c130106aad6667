package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserStableID(t *testing.T) {
	a := NewUser("user-1", "A")
	b := NewUser("user-1", "B")
	c := NewUser("user-2", "A")

	// The numeric id is a pure function of the external id.
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, "user-1", a.ExternalUserID)
}

func TestPurchaseKey(t *testing.T) {
	withSKU := Purchase{SKU: "LIS20", NormalizedName: "lisinopril 20mg tablets"}
	assert.Equal(t, "LIS20", withSKU.Key())

	withoutSKU := Purchase{NormalizedName: "lisinopril 20mg tablets"}
	assert.Equal(t, "lisinopril 20mg tablets", withoutSKU.Key())
}

func TestReferencePriceEntryAmount(t *testing.T) {
	min, mode, max := 5.0, 8.0, 15.0

	full := ReferencePriceEntry{Min: &min, Mode: &mode, Max: &max}
	amount, ok := full.Amount()
	assert.True(t, ok)
	assert.Equal(t, mode, amount)

	minOnly := ReferencePriceEntry{Min: &min}
	amount, ok = minOnly.Amount()
	assert.True(t, ok)
	assert.Equal(t, min, amount)

	empty := ReferencePriceEntry{}
	_, ok = empty.Amount()
	assert.False(t, ok)
}

func TestMerchantName(t *testing.T) {
	assert.Equal(t, "Amazon", MerchantName(44))
	assert.Equal(t, "Costco", MerchantName(165))
	assert.Equal(t, "Merchant 7", MerchantName(7))
}
