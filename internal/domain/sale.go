package domain

import "time"

// SaleItem is one line of a sale request.
type SaleItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// SaleRequest is the body posted to the remote sales endpoint.
type SaleRequest struct {
	UserID        int64      `json:"userId"`
	CashSessionID *int64     `json:"cashSessionId"`
	PaymentMethod string     `json:"paymentMethod"`
	Items         []SaleItem `json:"items"`
}

// NewSaleRequest derives a sale request from the cart, one item per line in
// cart order.
func NewSaleRequest(cart *Cart, buyer int64, cashSession *int64, method string) SaleRequest {
	items := make([]SaleItem, 0, len(cart.lines))
	for _, l := range cart.lines {
		items = append(items, SaleItem{SKU: l.SKU, Qty: l.Quantity})
	}
	return SaleRequest{
		UserID:        buyer,
		CashSessionID: cashSession,
		PaymentMethod: method,
		Items:         items,
	}
}

// SaleReceipt describes a sale the remote API accepted.
type SaleReceipt struct {
	SaleID         int64      `json:"sale_id"`
	IdempotencyKey string     `json:"idempotency_key"`
	Total          float64    `json:"total"`
	Lines          []CartLine `json:"lines"`
	PaymentMethod  string     `json:"payment_method"`
	CompletedAt    time.Time  `json:"completed_at"`
}
