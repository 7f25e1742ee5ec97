package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/event"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

func newTestCartService(policy domain.StockPolicy) (*CartService, *mockLookup, *eventRecorder) {
	lookup := new(mockLookup)
	events := &eventRecorder{}
	svc := NewCartService(session.NewRegistry(newTestLogger()), lookup, events, policy, newTestLogger())
	return svc, lookup, events
}

func TestCartService_AddItem_SameSKUTwice(t *testing.T) {
	svc, lookup, events := newTestCartService(domain.StockPolicyNone)
	ctx := context.Background()
	op := cashier()

	lookup.On("LookupSKU", mock.Anything, op, "TORT-CHOC").
		Return(product(1, "TORT-CHOC", "Torta de chocolate", 85000, 10), nil)

	_, err := svc.AddItem(ctx, op, "TORT-CHOC")
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, op, " TORT-CHOC ")
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, 170000.0, view.Total)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, []string{"cart.updated", "cart.updated"}, events.kinds())
	lookup.AssertExpectations(t)
}

func TestCartService_AddAndRemove(t *testing.T) {
	svc, lookup, _ := newTestCartService(domain.StockPolicyNone)
	ctx := context.Background()
	op := cashier()

	lookup.On("LookupSKU", mock.Anything, op, "TORT-CHOC").
		Return(product(1, "TORT-CHOC", "Torta de chocolate", 85000, 10), nil)
	lookup.On("LookupSKU", mock.Anything, op, "CHEESE").
		Return(product(2, "CHEESE", "Cheesecake", 90000, 10), nil)

	_, err := svc.AddItem(ctx, op, "TORT-CHOC")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, op, "CHEESE")
	require.NoError(t, err)

	view, err := svc.RemoveItem(ctx, op, "TORT-CHOC")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "CHEESE", view.Lines[0].SKU)
	assert.Equal(t, 90000.0, view.Total)
}

func TestCartService_AddItem_Validation(t *testing.T) {
	svc, lookup, events := newTestCartService(domain.StockPolicyNone)
	ctx := context.Background()
	op := cashier()

	_, err := svc.AddItem(ctx, op, "  ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	lookup.AssertNotCalled(t, "LookupSKU", mock.Anything, mock.Anything, mock.Anything)

	lookup.On("LookupSKU", mock.Anything, op, "NOPE").Return(nil, apperrors.NotFound("product", "NOPE"))
	_, err = svc.AddItem(ctx, op, "NOPE")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.Empty(t, events.kinds())
	assert.Empty(t, svc.GetCart(ctx, op).Lines)
}

func TestCartService_StockPolicy(t *testing.T) {
	ctx := context.Background()
	op := cashier()

	t.Run("reject", func(t *testing.T) {
		svc, lookup, _ := newTestCartService(domain.StockPolicyReject)
		lookup.On("LookupSKU", mock.Anything, op, "CAFE").Return(product(3, "CAFE", "Café", 4000, 1), nil)

		_, err := svc.AddItem(ctx, op, "CAFE")
		require.NoError(t, err)

		_, err = svc.AddItem(ctx, op, "CAFE")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrConflict))
		assert.Equal(t, 1, svc.GetCart(ctx, op).ItemCount)
	})

	t.Run("warn", func(t *testing.T) {
		svc, lookup, _ := newTestCartService(domain.StockPolicyWarn)
		lookup.On("LookupSKU", mock.Anything, op, "CAFE").Return(product(3, "CAFE", "Café", 4000, 1), nil)

		for range 3 {
			_, err := svc.AddItem(ctx, op, "CAFE")
			require.NoError(t, err)
		}
		assert.Equal(t, 3, svc.GetCart(ctx, op).ItemCount)
	})

	t.Run("none ignores stock", func(t *testing.T) {
		svc, lookup, _ := newTestCartService(domain.StockPolicyNone)
		lookup.On("LookupSKU", mock.Anything, op, "CAFE").Return(product(3, "CAFE", "Café", 4000, 0), nil)

		_, err := svc.AddItem(ctx, op, "CAFE")
		require.NoError(t, err)
		assert.Equal(t, 1, svc.GetCart(ctx, op).ItemCount)
	})
}

func TestCartService_AddItem_ProductWithoutSKU(t *testing.T) {
	svc, lookup, _ := newTestCartService(domain.StockPolicyNone)
	op := cashier()
	lookup.On("LookupSKU", mock.Anything, op, "X").Return(&domain.Product{ID: 9, Name: "Loose"}, nil)

	_, err := svc.AddItem(context.Background(), op, "X")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCartService_AddProduct(t *testing.T) {
	svc, lookup, _ := newTestCartService(domain.StockPolicyReject)
	ctx := context.Background()
	op := cashier()

	view, err := svc.AddProduct(ctx, op, domain.ProductRef{SKU: "CHEESE", Name: "Cheesecake", Price: 90000})
	require.NoError(t, err)
	assert.Equal(t, 90000.0, view.Total)
	lookup.AssertNotCalled(t, "LookupSKU", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.AddProduct(ctx, op, domain.ProductRef{SKU: "", Price: 1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	_, err = svc.AddProduct(ctx, op, domain.ProductRef{SKU: "NEG", Price: -1})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCartService_RemoveUnknownPublishesNothing(t *testing.T) {
	svc, _, events := newTestCartService(domain.StockPolicyNone)

	view, err := svc.RemoveItem(context.Background(), cashier(), "GHOST")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Empty(t, events.kinds())
}

func TestCartService_ClearCart(t *testing.T) {
	svc, _, events := newTestCartService(domain.StockPolicyNone)
	ctx := context.Background()
	op := cashier()

	require.NoError(t, svc.ClearCart(ctx, op))
	assert.Empty(t, events.kinds(), "clearing an empty cart publishes nothing")

	_, err := svc.AddProduct(ctx, op, domain.ProductRef{SKU: "CHEESE", Name: "Cheesecake", Price: 90000})
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, op))

	assert.Empty(t, svc.GetCart(ctx, op).Lines)
	assert.Equal(t, []string{"cart.updated", "cart.cleared"}, events.kinds())
	assert.Equal(t, event.ClearReasonOperator, events.events[1].reason)
}

func TestCartService_SessionsAreIsolated(t *testing.T) {
	svc, _, _ := newTestCartService(domain.StockPolicyNone)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, cashier(), domain.ProductRef{SKU: "CHEESE", Price: 90000})
	require.NoError(t, err)

	assert.Len(t, svc.GetCart(ctx, cashier()).Lines, 1)
	assert.Empty(t, svc.GetCart(ctx, leader()).Lines)
}
