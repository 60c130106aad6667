package insights

import (
	"testing"

	"medtrack-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeFlattensAndSorts(t *testing.T) {
	transactions := []models.Transaction{
		{
			ExternalID:   "tx-2",
			MerchantID:   45,
			MerchantName: "Walmart",
			OrderDate:    day(10),
			Items: []models.TransactionItem{
				{Name: "Ibuprofen 200mg Tablets", SKU: "IBU200", Price: floatPtr(8.99), Quantity: 1},
			},
		},
		{
			ExternalID:   "tx-1",
			MerchantID:   44,
			MerchantName: "Amazon",
			OrderDate:    day(2),
			Items: []models.TransactionItem{
				{Name: "Paper Towels", SKU: "PT1", Price: floatPtr(12.49), Quantity: 2},
				{Name: "Claritin 24hr", SKU: "CLA24", Price: floatPtr(19.99), Quantity: 1},
			},
		},
	}

	purchases, malformed := Normalize(transactions)
	require.Empty(t, malformed)
	require.Len(t, purchases, 3)

	assert.Equal(t, "PT1", purchases[0].SKU)
	assert.Equal(t, "CLA24", purchases[1].SKU)
	assert.Equal(t, "IBU200", purchases[2].SKU)

	assert.False(t, purchases[0].IsMedication)
	assert.True(t, purchases[1].IsMedication)
	assert.Equal(t, "loratadine", purchases[1].IngredientKey)
	assert.True(t, purchases[2].IsMedication)
	assert.Equal(t, "ibuprofen", purchases[2].IngredientKey)
}

func TestNormalizeTiesKeepTransactionThenItemOrder(t *testing.T) {
	transactions := []models.Transaction{
		{
			ExternalID: "tx-a",
			OrderDate:  day(5),
			Items: []models.TransactionItem{
				{Name: "First", SKU: "S1", Quantity: 1},
				{Name: "Second", SKU: "S2", Quantity: 1},
			},
		},
		{
			ExternalID: "tx-b",
			OrderDate:  day(5),
			Items: []models.TransactionItem{
				{Name: "Third", SKU: "S3", Quantity: 1},
			},
		},
	}

	purchases, _ := Normalize(transactions)
	require.Len(t, purchases, 3)
	assert.Equal(t, []string{"S1", "S2", "S3"}, []string{purchases[0].SKU, purchases[1].SKU, purchases[2].SKU})
}

func TestNormalizeRecordsMalformedItems(t *testing.T) {
	transactions := []models.Transaction{
		{
			ExternalID: "tx-bad",
			OrderDate:  day(0),
			Items: []models.TransactionItem{
				{Name: "", SKU: "", Price: floatPtr(4.99), Quantity: 1},
				{Name: "Tylenol Extra Strength", SKU: "TYL500", Price: floatPtr(9.49), Quantity: 1},
			},
		},
	}

	purchases, malformed := Normalize(transactions)

	// The bad item is skipped and recorded; the rest of the sync survives.
	require.Len(t, purchases, 1)
	assert.Equal(t, "TYL500", purchases[0].SKU)

	require.Len(t, malformed, 1)
	assert.Equal(t, "tx-bad", malformed[0].TransactionID)
	assert.Equal(t, 0, malformed[0].ItemIndex)
}

func TestNormalizeDefaultsQuantity(t *testing.T) {
	transactions := []models.Transaction{
		{
			ExternalID: "tx-q",
			OrderDate:  day(0),
			Items: []models.TransactionItem{
				{Name: "Zyrtec Allergy", SKU: "ZYR10", Price: floatPtr(14.99), Quantity: 0},
			},
		},
	}

	purchases, _ := Normalize(transactions)
	require.Len(t, purchases, 1)
	assert.Equal(t, 1.0, purchases[0].Quantity)
}

func TestClassifyMedication(t *testing.T) {
	cases := []struct {
		name       string
		isMed      bool
		ingredient string
	}{
		{"Advil Liqui-Gels 80 count", true, "ibuprofen"},
		{"Ibuprofen 200mg Tablets 100 count", true, "ibuprofen"},
		{"Vitamin D3 2000 IU", true, ""},
		{"Kitchen Paper Towels", false, ""},
		{"", false, ""},
	}

	for _, tc := range cases {
		cls := classifyMedication(tc.name)
		assert.Equal(t, tc.isMed, cls.IsMedication, tc.name)
		assert.Equal(t, tc.ingredient, cls.IngredientKey, tc.name)
	}
}

func TestNormalizeMedicationName(t *testing.T) {
	assert.Equal(t, "advil liqui gels", NormalizeMedicationName("Advil  Liqui-Gels!"))
	assert.Equal(t, "", NormalizeMedicationName("  "))
}
