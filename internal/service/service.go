package service

import (
	"context"

	"github.com/AlejandroAndrade98/embipos/internal/client"
	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// Operator is the signed-in operator on whose behalf a call is made.
type Operator struct {
	SessionID string
	UserID    int64
	Role      string
	// Token is the POS API bearer token.
	Token string
}

// EventPublisher publishes terminal domain events. *event.Producer
// satisfies it.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID string, userID int64, view domain.CartView) error
	PublishCartCleared(ctx context.Context, sessionID string, userID int64, reason string) error
	PublishSaleCompleted(ctx context.Context, sessionID string, userID int64, r *domain.SaleReceipt) error
}

// SalesAPI submits sales to the POS API.
type SalesAPI interface {
	CreateSale(ctx context.Context, token, idemKey string, req domain.SaleRequest) (int64, error)
}

// CatalogAPI is the product part of the POS API.
type CatalogAPI interface {
	ListProducts(ctx context.Context, token, q string) ([]domain.Product, error)
	GetBySKU(ctx context.Context, token, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error)
	SetStock(ctx context.Context, token string, id int64, stock int) (*domain.Product, error)
	AdjustStock(ctx context.Context, token string, id int64, delta int) (*domain.Product, error)
}

// ReportsAPI is the reporting part of the POS API.
type ReportsAPI interface {
	DailyReport(ctx context.Context, token, date string) (*domain.DailyReport, error)
	RangeReport(ctx context.Context, token, from, to string) (*domain.RangeReport, error)
}

// GoalsAPI reads and writes sales targets.
type GoalsAPI interface {
	GetGoals(ctx context.Context, token string) (*domain.Goals, error)
	UpdateGoals(ctx context.Context, token string, patch domain.GoalsPatch) (*domain.Goals, error)
}

// AuthAPI signs operators in and out of the POS API.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*client.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.User, error)
}
