package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/repository"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/slug"
)

// CatalogService fronts the remote product catalog with a short SKU cache.
type CatalogService struct {
	api    CatalogAPI
	cache  repository.ProductCache
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(api CatalogAPI, cache repository.ProductCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{api: api, cache: cache, logger: logger}
}

// List returns the products matching q, or all products when q is empty.
func (s *CatalogService) List(ctx context.Context, op Operator, q string) ([]domain.Product, error) {
	products, err := s.api.ListProducts(ctx, op.Token, strings.TrimSpace(q))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Create adds a product. A SKU is derived from the name when none is given.
func (s *CatalogService) Create(ctx context.Context, op Operator, in domain.ProductInput) (*domain.Product, error) {
	if err := requireCatalogRole(op); err != nil {
		return nil, err
	}
	in = in.Normalize()
	if in.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if in.SKU == nil || strings.TrimSpace(*in.SKU) == "" {
		if sku := slug.SKU(in.Name); sku != "" {
			in.SKU = &sku
		}
	}

	p, err := s.api.CreateProduct(ctx, op.Token, in)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created", slog.Int64("product_id", p.ID))
	return p, nil
}

// Update applies a partial update to product id.
func (s *CatalogService) Update(ctx context.Context, op Operator, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if err := requireCatalogRole(op); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	p, err := s.api.UpdateProduct(ctx, op.Token, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	skus := []string{}
	if patch.SKU != nil {
		skus = append(skus, *patch.SKU)
	}
	s.invalidate(ctx, p, skus...)
	return p, nil
}

// ChangeStock sets or adjusts the stock of product id.
func (s *CatalogService) ChangeStock(ctx context.Context, op Operator, id int64, change domain.StockChange) (*domain.Product, error) {
	if err := requireCatalogRole(op); err != nil {
		return nil, err
	}
	if !change.IsValid() {
		return nil, apperrors.InvalidInput("exactly one of stock and delta is required")
	}

	var (
		p   *domain.Product
		err error
	)
	if change.Stock != nil {
		p, err = s.api.SetStock(ctx, op.Token, id, *change.Stock)
	} else {
		p, err = s.api.AdjustStock(ctx, op.Token, id, *change.Delta)
	}
	if err != nil {
		return nil, fmt.Errorf("change stock of product %d: %w", id, err)
	}

	s.invalidate(ctx, p)
	return p, nil
}

// LookupSKU returns the product with exactly this SKU, reading through the
// cache. Cache failures fall back to the API.
func (s *CatalogService) LookupSKU(ctx context.Context, op Operator, sku string) (*domain.Product, error) {
	p, err := s.cache.Get(ctx, sku)
	switch {
	case err == nil:
		skuCacheLookups.WithLabelValues("hit").Inc()
		return p, nil
	case errors.Is(err, apperrors.ErrNotFound):
		skuCacheLookups.WithLabelValues("miss").Inc()
	default:
		skuCacheLookups.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "sku cache read failed", slog.String("sku", sku), slog.String("error", err.Error()))
	}

	p, err = s.api.GetBySKU(ctx, op.Token, sku)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, sku, p); err != nil {
		s.logger.WarnContext(ctx, "sku cache write failed", slog.String("sku", sku), slog.String("error", err.Error()))
	}
	return p, nil
}

func (s *CatalogService) invalidate(ctx context.Context, p *domain.Product, extra ...string) {
	skus := extra
	if p != nil && p.SKU != nil && *p.SKU != "" {
		skus = append(skus, *p.SKU)
	}
	if len(skus) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, skus...); err != nil {
		s.logger.WarnContext(ctx, "sku cache invalidation failed", slog.Any("skus", skus), slog.String("error", err.Error()))
	}
}

func requireCatalogRole(op Operator) error {
	if !domain.CanManageCatalog(op.Role) {
		return apperrors.Forbidden("only admins and leaders can manage the catalog")
	}
	return nil
}
