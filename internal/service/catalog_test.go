package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	redisrepo "github.com/AlejandroAndrade98/embipos/internal/repository/redis"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

func newTestCatalogService(t *testing.T) (*CatalogService, *mockCatalogAPI, *redisrepo.ProductCache) {
	t.Helper()
	rdb, _ := setupTestRedis(t)
	api := new(mockCatalogAPI)
	cache := redisrepo.NewProductCache(rdb, 30*time.Second)
	return NewCatalogService(api, cache, newTestLogger()), api, cache
}

func TestCatalogService_LookupSKU_ReadThrough(t *testing.T) {
	svc, api, cache := newTestCatalogService(t)
	ctx := context.Background()
	op := cashier()

	api.On("GetBySKU", mock.Anything, "api-token", "TORT-CHOC").
		Return(product(1, "TORT-CHOC", "Torta de chocolate", 85000, 4), nil).Once()

	p, err := svc.LookupSKU(ctx, op, "TORT-CHOC")
	require.NoError(t, err)
	assert.Equal(t, 85000.0, p.Price)

	cached, err := cache.Get(ctx, "TORT-CHOC")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.ID)

	p, err = svc.LookupSKU(ctx, op, "TORT-CHOC")
	require.NoError(t, err)
	assert.Equal(t, "Torta de chocolate", p.Name)
	api.AssertNumberOfCalls(t, "GetBySKU", 1)
}

func TestCatalogService_LookupSKU_NotFound(t *testing.T) {
	svc, api, _ := newTestCatalogService(t)
	api.On("GetBySKU", mock.Anything, "api-token", "NOPE").Return(nil, apperrors.NotFound("product", "NOPE"))

	_, err := svc.LookupSKU(context.Background(), cashier(), "NOPE")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCatalogService_Create_SuggestsSKU(t *testing.T) {
	svc, api, _ := newTestCatalogService(t)

	api.On("CreateProduct", mock.Anything, "api-token", mock.MatchedBy(func(in domain.ProductInput) bool {
		return in.SKU != nil && *in.SKU == "TORT-CHOC" &&
			in.Name == "Torta de Chocolate" &&
			in.Stock != nil && *in.Stock == 0 &&
			in.Active != nil && *in.Active
	})).Return(product(10, "TORT-CHOC", "Torta de Chocolate", 85000, 0), nil)

	p, err := svc.Create(context.Background(), leader(), domain.ProductInput{Name: "  Torta de Chocolate ", Price: 85000})
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)
	api.AssertExpectations(t)
}

func TestCatalogService_RequiresCatalogRole(t *testing.T) {
	svc, api, _ := newTestCatalogService(t)
	ctx := context.Background()
	op := cashier()

	_, err := svc.Create(ctx, op, domain.ProductInput{Name: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = svc.Update(ctx, op, 1, domain.ProductPatch{Name: strPtr("y")})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	_, err = svc.ChangeStock(ctx, op, 1, domain.StockChange{Stock: intPtr(3)})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	api.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogService_Update_InvalidatesCache(t *testing.T) {
	svc, api, cache := newTestCatalogService(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "CHEESE", product(2, "CHEESE", "Cheesecake", 90000, 5)))

	patch := domain.ProductPatch{Price: floatPtr(95000)}
	api.On("UpdateProduct", mock.Anything, "api-token", int64(2), patch).
		Return(product(2, "CHEESE", "Cheesecake", 95000, 5), nil)

	p, err := svc.Update(ctx, leader(), 2, patch)
	require.NoError(t, err)
	assert.Equal(t, 95000.0, p.Price)

	_, err = cache.Get(ctx, "CHEESE")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.Update(ctx, leader(), 2, domain.ProductPatch{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCatalogService_ChangeStock(t *testing.T) {
	svc, api, cache := newTestCatalogService(t)
	ctx := context.Background()
	op := leader()

	api.On("SetStock", mock.Anything, "api-token", int64(2), 10).Return(product(2, "CHEESE", "Cheesecake", 90000, 10), nil)
	api.On("AdjustStock", mock.Anything, "api-token", int64(2), -3).Return(product(2, "CHEESE", "Cheesecake", 90000, 7), nil)

	require.NoError(t, cache.Set(ctx, "CHEESE", product(2, "CHEESE", "Cheesecake", 90000, 5)))
	p, err := svc.ChangeStock(ctx, op, 2, domain.StockChange{Stock: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	_, err = cache.Get(ctx, "CHEESE")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	p, err = svc.ChangeStock(ctx, op, 2, domain.StockChange{Delta: intPtr(-3)})
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	_, err = svc.ChangeStock(ctx, op, 2, domain.StockChange{Stock: intPtr(1), Delta: intPtr(1)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.ChangeStock(ctx, op, 2, domain.StockChange{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCatalogService_List(t *testing.T) {
	svc, api, _ := newTestCatalogService(t)
	api.On("ListProducts", mock.Anything, "api-token", "torta").
		Return([]domain.Product{*product(1, "TORT-CHOC", "Torta de chocolate", 85000, 4)}, nil)

	products, err := svc.List(context.Background(), cashier(), " torta ")
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
