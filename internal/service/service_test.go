package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/AlejandroAndrade98/embipos/internal/client"
	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// --- Mocks ---

type mockSalesAPI struct {
	mock.Mock
}

func (m *mockSalesAPI) CreateSale(ctx context.Context, token, idemKey string, req domain.SaleRequest) (int64, error) {
	args := m.Called(ctx, token, idemKey, req)
	return args.Get(0).(int64), args.Error(1)
}

type mockCatalogAPI struct {
	mock.Mock
}

func (m *mockCatalogAPI) result(args mock.Arguments) (*domain.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogAPI) ListProducts(ctx context.Context, token, q string) ([]domain.Product, error) {
	args := m.Called(ctx, token, q)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockCatalogAPI) GetBySKU(ctx context.Context, token, sku string) (*domain.Product, error) {
	return m.result(m.Called(ctx, token, sku))
}

func (m *mockCatalogAPI) CreateProduct(ctx context.Context, token string, in domain.ProductInput) (*domain.Product, error) {
	return m.result(m.Called(ctx, token, in))
}

func (m *mockCatalogAPI) UpdateProduct(ctx context.Context, token string, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	return m.result(m.Called(ctx, token, id, patch))
}

func (m *mockCatalogAPI) SetStock(ctx context.Context, token string, id int64, stock int) (*domain.Product, error) {
	return m.result(m.Called(ctx, token, id, stock))
}

func (m *mockCatalogAPI) AdjustStock(ctx context.Context, token string, id int64, delta int) (*domain.Product, error) {
	return m.result(m.Called(ctx, token, id, delta))
}

type mockReportsAPI struct {
	mock.Mock
}

func (m *mockReportsAPI) DailyReport(ctx context.Context, token, date string) (*domain.DailyReport, error) {
	args := m.Called(ctx, token, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DailyReport), args.Error(1)
}

func (m *mockReportsAPI) RangeReport(ctx context.Context, token, from, to string) (*domain.RangeReport, error) {
	args := m.Called(ctx, token, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RangeReport), args.Error(1)
}

type mockGoalsAPI struct {
	mock.Mock
}

func (m *mockGoalsAPI) GetGoals(ctx context.Context, token string) (*domain.Goals, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Goals), args.Error(1)
}

func (m *mockGoalsAPI) UpdateGoals(ctx context.Context, token string, patch domain.GoalsPatch) (*domain.Goals, error) {
	args := m.Called(ctx, token, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Goals), args.Error(1)
}

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) Login(ctx context.Context, email, password string) (*client.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.LoginResult), args.Error(1)
}

func (m *mockAuthAPI) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuthAPI) Me(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) LookupSKU(ctx context.Context, op Operator, sku string) (*domain.Product, error) {
	args := m.Called(ctx, op, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

// --- Fakes ---

type recordedEvent struct {
	kind   string
	reason string
	view   domain.CartView
	sale   *domain.SaleReceipt
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) add(e recordedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) PublishCartUpdated(_ context.Context, _ string, _ int64, view domain.CartView) error {
	return r.add(recordedEvent{kind: "cart.updated", view: view})
}

func (r *eventRecorder) PublishCartCleared(_ context.Context, _ string, _ int64, reason string) error {
	return r.add(recordedEvent{kind: "cart.cleared", reason: reason})
}

func (r *eventRecorder) PublishSaleCompleted(_ context.Context, _ string, _ int64, s *domain.SaleReceipt) error {
	return r.add(recordedEvent{kind: "sale.completed", sale: s})
}

func (r *eventRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func cashier() Operator {
	return Operator{SessionID: "sess-1", UserID: 7, Role: domain.RoleCashier, Token: "api-token"}
}

func leader() Operator {
	return Operator{SessionID: "sess-2", UserID: 3, Role: domain.RoleLeader, Token: "api-token"}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func product(id int64, sku, name string, price float64, stock int) *domain.Product {
	return &domain.Product{ID: id, SKU: strPtr(sku), Name: name, Price: price, Stock: stock, Active: true}
}
