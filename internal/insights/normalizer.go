package insights

import (
	"sort"

	"medtrack-service/internal/models"
)

// Normalize flattens transactions into one purchase per item line, classifies
// medication items, and stable-sorts the result by date ascending (ties keep
// transaction order, then item order). Items lacking both a sku and a name are
// skipped and recorded as malformed; one bad record never aborts a run.
func Normalize(transactions []models.Transaction) ([]models.Purchase, []*models.MalformedTransactionError) {
	purchases := make([]models.Purchase, 0, len(transactions))
	var malformed []*models.MalformedTransactionError

	for _, tx := range transactions {
		for i, item := range tx.Items {
			if item.SKU == "" && item.Name == "" {
				malformed = append(malformed, &models.MalformedTransactionError{
					TransactionID: tx.ExternalID,
					ItemIndex:     i,
					Reason:        "item has neither sku nor name",
				})
				continue
			}

			cls := classifyMedication(item.Name)
			quantity := item.Quantity
			if quantity <= 0 {
				quantity = 1
			}

			purchases = append(purchases, models.Purchase{
				SKU:            item.SKU,
				Name:           item.Name,
				MerchantID:     tx.MerchantID,
				MerchantName:   tx.MerchantName,
				Date:           tx.OrderDate,
				UnitPrice:      item.Price,
				Quantity:       quantity,
				IsMedication:   cls.IsMedication,
				NormalizedName: cls.NormalizedName,
				IngredientKey:  cls.IngredientKey,
			})
		}
	}

	sort.SliceStable(purchases, func(i, j int) bool {
		return purchases[i].Date.Before(purchases[j].Date)
	})

	return purchases, malformed
}
