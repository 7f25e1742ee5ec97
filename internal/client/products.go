package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

// ListProducts searches the catalog by name or SKU. An empty q lists
// everything.
func (c *Client) ListProducts(ctx context.Context, token, q string) ([]domain.Product, error) {
	var query url.Values
	if q != "" {
		query = url.Values{"q": {q}}
	}

	var products []domain.Product
	if err := c.do(ctx, call{
		op:     "list_products",
		method: http.MethodGet,
		path:   "/products",
		query:  query,
		token:  token,
		out:    &products,
	}); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// GetBySKU returns the product whose SKU is exactly sku.
func (c *Client) GetBySKU(ctx context.Context, token, sku string) (*domain.Product, error) {
	products, err := c.ListProducts(ctx, token, sku)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].SKU != nil && *products[i].SKU == sku {
			return &products[i], nil
		}
	}
	return nil, apperrors.NotFound("product", sku)
}

// CreateProduct creates a product. The input is normalized first.
func (c *Client) CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, call{
		op:     "create_product",
		method: http.MethodPost,
		path:   "/products",
		token:  token,
		in:     in.Normalize(),
		out:    &p,
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct sends a partial update.
func (c *Client) UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, call{
		op:     "update_product",
		method: http.MethodPut,
		path:   productPath(id),
		token:  token,
		in:     patch,
		out:    &p,
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetStock sets the exact stock of a product.
func (c *Client) SetStock(ctx context.Context, token string, id int64, stock int) (*domain.Product, error) {
	return c.changeStock(ctx, token, id, "set_stock", domain.StockChange{Stock: &stock})
}

// AdjustStock adds delta (possibly negative) to the stock of a product.
func (c *Client) AdjustStock(ctx context.Context, token string, id int64, delta int) (*domain.Product, error) {
	return c.changeStock(ctx, token, id, "adjust_stock", domain.StockChange{Delta: &delta})
}

func (c *Client) changeStock(ctx context.Context, token string, id int64, op string, change domain.StockChange) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, call{
		op:     op,
		method: http.MethodPatch,
		path:   productPath(id) + "/stock",
		token:  token,
		in:     change,
		out:    &p,
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
