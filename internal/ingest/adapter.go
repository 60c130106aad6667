package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"medtrack-service/internal/models"
)

// Adapter converts one merchant's raw transaction format into the uniform
// Transaction record. Every known merchant format implements the same
// extraction contract; unknown merchants fall back to the generic adapter.
type Adapter interface {
	Adapt(raw json.RawMessage, merchantID int64, source string) (*models.Transaction, error)
}

var adapters = map[int64]Adapter{
	44: amazonAdapter{},
	45: walmartAdapter{},
	12: targetAdapter{},
}

// AdapterFor returns the adapter registered for a merchant, or the generic
// fallback adapter.
func AdapterFor(merchantID int64) Adapter {
	if a, ok := adapters[merchantID]; ok {
		return a
	}
	return genericAdapter{}
}

// Amazon order exports use camelCase keys and an externalId.
type amazonAdapter struct{}

type amazonOrder struct {
	ExternalID  string       `json:"externalId"`
	OrderID     string       `json:"orderId"`
	DateTime    string       `json:"dateTime"`
	OrderStatus string       `json:"orderStatus"`
	Total       *float64     `json:"total"`
	Items       []amazonItem `json:"items"`
}

type amazonItem struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
}

func (amazonAdapter) Adapt(raw json.RawMessage, merchantID int64, source string) (*models.Transaction, error) {
	var order amazonOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to parse amazon order: %w", err)
	}

	items := make([]models.TransactionItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.TransactionItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Price:    item.Price,
			Quantity: quantityOrOne(item.Quantity),
		})
	}

	tx := newTransaction(merchantID, source, items)
	tx.ExternalID = resolveExternalID(merchantID, order.ExternalID, order.OrderID, order.DateTime)
	tx.OrderID = firstNonEmpty(order.OrderID, order.ExternalID)
	tx.OrderDate = parseOrderDate(order.DateTime)
	tx.Status = statusOrUnknown(order.OrderStatus)
	tx.Total = deriveTotal(order.Total, items)
	return tx, nil
}

// Walmart order exports use orderDate/unitPrice/qty keys.
type walmartAdapter struct{}

type walmartOrder struct {
	OrderID   string        `json:"orderId"`
	OrderDate string        `json:"orderDate"`
	Status    string        `json:"status"`
	Amount    *float64      `json:"amount"`
	Items     []walmartItem `json:"items"`
}

type walmartItem struct {
	Description string   `json:"description"`
	Name        string   `json:"name"`
	SKU         string   `json:"sku"`
	UnitPrice   *float64 `json:"unitPrice"`
	Price       *float64 `json:"price"`
	Qty         *float64 `json:"qty"`
	Quantity    *float64 `json:"quantity"`
}

func (walmartAdapter) Adapt(raw json.RawMessage, merchantID int64, source string) (*models.Transaction, error) {
	var order walmartOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to parse walmart order: %w", err)
	}

	items := make([]models.TransactionItem, 0, len(order.Items))
	for _, item := range order.Items {
		price := item.UnitPrice
		if price == nil {
			price = item.Price
		}
		qty := item.Qty
		if qty == nil {
			qty = item.Quantity
		}
		items = append(items, models.TransactionItem{
			Name:     firstNonEmpty(item.Description, item.Name),
			SKU:      item.SKU,
			Price:    price,
			Quantity: quantityOrOne(qty),
		})
	}

	tx := newTransaction(merchantID, source, items)
	tx.ExternalID = resolveExternalID(merchantID, order.OrderID, "", order.OrderDate)
	tx.OrderID = order.OrderID
	tx.OrderDate = parseOrderDate(order.OrderDate)
	tx.Status = statusOrUnknown(order.Status)
	tx.Total = deriveTotal(order.Amount, items)
	return tx, nil
}

// Target order exports use snake_case keys.
type targetAdapter struct{}

type targetOrder struct {
	OrderID   string       `json:"order_id"`
	OrderedAt string       `json:"ordered_at"`
	Status    string       `json:"status"`
	Total     *float64     `json:"total"`
	Items     []targetItem `json:"items"`
}

type targetItem struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
}

func (targetAdapter) Adapt(raw json.RawMessage, merchantID int64, source string) (*models.Transaction, error) {
	var order targetOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to parse target order: %w", err)
	}

	items := make([]models.TransactionItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.TransactionItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Price:    item.Price,
			Quantity: quantityOrOne(item.Quantity),
		})
	}

	tx := newTransaction(merchantID, source, items)
	tx.ExternalID = resolveExternalID(merchantID, order.OrderID, "", order.OrderedAt)
	tx.OrderID = order.OrderID
	tx.OrderDate = parseOrderDate(order.OrderedAt)
	tx.Status = statusOrUnknown(order.Status)
	tx.Total = deriveTotal(order.Total, items)
	return tx, nil
}

// genericAdapter probes the common key spellings for merchants without a
// dedicated adapter.
type genericAdapter struct{}

type genericOrder struct {
	ExternalID  string        `json:"externalId"`
	ExternalID2 string        `json:"external_id"`
	OrderID     string        `json:"orderId"`
	OrderID2    string        `json:"order_id"`
	DateTime    string        `json:"dateTime"`
	OrderDate   string        `json:"orderDate"`
	OrderedAt   string        `json:"ordered_at"`
	OrderStatus string        `json:"orderStatus"`
	Status      string        `json:"status"`
	Total       *float64      `json:"total"`
	Amount      *float64      `json:"amount"`
	Items       []genericItem `json:"items"`
}

type genericItem struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
}

func (genericAdapter) Adapt(raw json.RawMessage, merchantID int64, source string) (*models.Transaction, error) {
	var order genericOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order: %w", err)
	}

	items := make([]models.TransactionItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.TransactionItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Price:    item.Price,
			Quantity: quantityOrOne(item.Quantity),
		})
	}

	dateRaw := firstNonEmpty(order.DateTime, order.OrderDate, order.OrderedAt)
	tx := newTransaction(merchantID, source, items)
	tx.ExternalID = resolveExternalID(merchantID,
		firstNonEmpty(order.ExternalID, order.ExternalID2),
		firstNonEmpty(order.OrderID, order.OrderID2),
		dateRaw)
	tx.OrderID = firstNonEmpty(order.OrderID, order.OrderID2, order.ExternalID, order.ExternalID2)
	tx.OrderDate = parseOrderDate(dateRaw)
	tx.Status = statusOrUnknown(firstNonEmpty(order.OrderStatus, order.Status))
	tx.Total = deriveTotal(firstFloat(order.Total, order.Amount), items)
	return tx, nil
}

func newTransaction(merchantID int64, source string, items []models.TransactionItem) *models.Transaction {
	return &models.Transaction{
		MerchantID:   merchantID,
		MerchantName: models.MerchantName(merchantID),
		Source:       source,
		Items:        items,
	}
}

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseOrderDate(raw string) time.Time {
	for _, layout := range orderDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

func resolveExternalID(merchantID int64, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return fmt.Sprintf("%d-%s", merchantID, time.Now().UTC().Format(time.RFC3339))
}

func deriveTotal(declared *float64, items []models.TransactionItem) *float64 {
	if declared != nil {
		rounded := round2(*declared)
		return &rounded
	}
	var total float64
	for _, item := range items {
		if item.Price == nil {
			continue
		}
		total += *item.Price * item.Quantity
	}
	if total <= 0 {
		return nil
	}
	rounded := round2(total)
	return &rounded
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func quantityOrOne(q *float64) float64 {
	if q == nil || *q <= 0 {
		return 1
	}
	return *q
}

func statusOrUnknown(status string) string {
	if status == "" {
		return "UNKNOWN"
	}
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
