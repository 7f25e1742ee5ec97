package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/event"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

// ProductLookup resolves a SKU to a catalog product.
type ProductLookup interface {
	LookupSKU(ctx context.Context, op Operator, sku string) (*domain.Product, error)
}

// CartService implements the cart operations of an operator session.
type CartService struct {
	sessions *session.Registry
	products ProductLookup
	events   EventPublisher
	policy   domain.StockPolicy
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(sessions *session.Registry, products ProductLookup, events EventPublisher, policy domain.StockPolicy, logger *slog.Logger) *CartService {
	return &CartService{
		sessions: sessions,
		products: products,
		events:   events,
		policy:   policy,
		logger:   logger,
	}
}

// GetCart returns a snapshot of the operator's cart.
func (s *CartService) GetCart(_ context.Context, op Operator) domain.CartView {
	var view domain.CartView
	_ = s.sessions.Do(op.SessionID, func(c *domain.Cart) error {
		view = c.View()
		return nil
	})
	return view
}

// AddItem looks sku up in the catalog and adds one unit of it, applying the
// configured stock policy.
func (s *CartService) AddItem(ctx context.Context, op Operator, sku string) (domain.CartView, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return domain.CartView{}, apperrors.InvalidInput("sku is required")
	}

	p, err := s.products.LookupSKU(ctx, op, sku)
	if err != nil {
		return domain.CartView{}, fmt.Errorf("lookup sku %s: %w", sku, err)
	}
	ref, ok := p.Ref()
	if !ok {
		return domain.CartView{}, apperrors.InvalidInput(fmt.Sprintf("product %d has no sku", p.ID))
	}

	return s.mutate(ctx, op, func(c *domain.Cart) error {
		if s.policy != domain.StockPolicyNone && domain.ExceedsStock(c.Quantity(ref.SKU), p.Stock) {
			if s.policy == domain.StockPolicyReject {
				return apperrors.Conflict(fmt.Sprintf("only %d units of %s in stock", p.Stock, ref.SKU))
			}
			s.logger.WarnContext(ctx, "adding item beyond catalog stock",
				slog.String("sku", ref.SKU),
				slog.Int("in_cart", c.Quantity(ref.SKU)),
				slog.Int("stock", p.Stock),
			)
		}
		c.AddItem(ref)
		return nil
	})
}

// AddProduct adds one unit of a caller-provided product without a catalog
// lookup. Stock is not checked.
func (s *CartService) AddProduct(ctx context.Context, op Operator, ref domain.ProductRef) (domain.CartView, error) {
	ref.SKU = strings.TrimSpace(ref.SKU)
	if ref.SKU == "" {
		return domain.CartView{}, apperrors.InvalidInput("sku is required")
	}
	if ref.Price < 0 {
		return domain.CartView{}, apperrors.InvalidInput("price must not be negative")
	}

	return s.mutate(ctx, op, func(c *domain.Cart) error {
		c.AddItem(ref)
		return nil
	})
}

// RemoveItem deletes the line for sku. Unknown SKUs are ignored.
func (s *CartService) RemoveItem(ctx context.Context, op Operator, sku string) (domain.CartView, error) {
	return s.mutate(ctx, op, func(c *domain.Cart) error {
		c.RemoveItem(sku)
		return nil
	})
}

// ClearCart empties the operator's cart.
func (s *CartService) ClearCart(ctx context.Context, op Operator) error {
	var changed bool
	_ = s.sessions.Do(op.SessionID, func(c *domain.Cart) error {
		changed = !c.IsEmpty()
		c.Clear()
		return nil
	})

	if changed {
		if err := s.events.PublishCartCleared(ctx, op.SessionID, op.UserID, event.ClearReasonOperator); err != nil {
			s.logger.WarnContext(ctx, "failed to publish cart cleared event", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *CartService) mutate(ctx context.Context, op Operator, fn func(c *domain.Cart) error) (domain.CartView, error) {
	var (
		view    domain.CartView
		changed bool
	)
	err := s.sessions.Do(op.SessionID, func(c *domain.Cart) error {
		before := c.Version()
		if err := fn(c); err != nil {
			return err
		}
		changed = c.Version() != before
		view = c.View()
		return nil
	})
	if err != nil {
		return domain.CartView{}, err
	}

	if changed {
		if err := s.events.PublishCartUpdated(ctx, op.SessionID, op.UserID, view); err != nil {
			s.logger.WarnContext(ctx, "failed to publish cart updated event", slog.String("error", err.Error()))
		}
	}
	return view, nil
}
