package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// ErrMissingIdempotencyKey is returned by CreateSale without a key. Sales
// are retried on network errors, which is only safe with a key.
var ErrMissingIdempotencyKey = errors.New("create sale: idempotency key is required")

type createSaleResponse struct {
	SaleID int64 `json:"saleId"`
}

// CreateSale posts the sale as a single request and returns the sale id.
func (c *Client) CreateSale(ctx context.Context, token, idemKey string, req domain.SaleRequest) (int64, error) {
	if idemKey == "" {
		return 0, ErrMissingIdempotencyKey
	}

	var resp createSaleResponse
	if err := c.do(ctx, call{
		op:      "create_sale",
		method:  http.MethodPost,
		path:    "/sales",
		token:   token,
		idemKey: idemKey,
		in:      req,
		out:     &resp,
	}); err != nil {
		return 0, err
	}
	return resp.SaleID, nil
}
