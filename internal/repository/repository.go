package repository

import (
	"context"
	"time"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
)

// CheckoutLedger records every checkout attempt by idempotency key.
type CheckoutLedger interface {
	// Create inserts a new attempt. A duplicate key yields an AlreadyExists error.
	Create(ctx context.Context, attempt *domain.CheckoutAttempt) error

	// Get returns the attempt with the given idempotency key.
	Get(ctx context.Context, key string) (*domain.CheckoutAttempt, error)

	// Update stores the status, sale id and failure reason of an attempt.
	Update(ctx context.Context, attempt *domain.CheckoutAttempt) error

	// ListByUser returns one page of the operator's attempts, newest first,
	// and the total number of attempts.
	ListByUser(ctx context.Context, userID int64, params pagination.Params) ([]domain.CheckoutAttempt, int, error)
}

// SessionStore persists operator sessions between restarts.
type SessionStore interface {
	Save(ctx context.Context, s *domain.OperatorSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.OperatorSession, error)
	Delete(ctx context.Context, id string) error
}

// ProductCache keeps recent SKU lookups.
type ProductCache interface {
	// Get returns a NotFound error on a cache miss.
	Get(ctx context.Context, sku string) (*domain.Product, error)
	Set(ctx context.Context, sku string, p *domain.Product) error
	Invalidate(ctx context.Context, skus ...string) error
}
