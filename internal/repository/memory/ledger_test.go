package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
)

func attempt(key string, user int64, created time.Time) *domain.CheckoutAttempt {
	a := domain.NewCheckoutAttempt(key, "sess", user, "cash",
		[]domain.CartLine{{SKU: "CHEESE", Name: "Cheesecake", UnitPrice: 90000, Quantity: 1}}, 90000)
	a.CreatedAt = created
	a.UpdatedAt = created
	return a
}

func TestLedger_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	a := attempt("k1", 7, time.Now())

	require.NoError(t, l.Create(ctx, a))
	err := l.Create(ctx, a)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	require.NoError(t, a.Succeed(501))
	require.NoError(t, l.Update(ctx, a))

	got, err := l.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSucceeded, got.Status)
	assert.Equal(t, int64(501), *got.SaleID)
}

func TestLedger_NotFound(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	_, err := l.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = l.Update(ctx, attempt("missing", 1, time.Now()))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLedger_StoresCopies(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	a := attempt("k1", 7, time.Now())
	require.NoError(t, l.Create(ctx, a))

	a.Lines[0].Quantity = 50
	got, err := l.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Lines[0].Quantity)
}

func TestLedger_ListByUser(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Create(ctx, attempt(fmt.Sprintf("u7-%d", i), 7, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, l.Create(ctx, attempt("u8-0", 8, base)))

	page, total, err := l.ListByUser(ctx, 7, pagination.New(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "u7-4", page[0].IdempotencyKey)
	assert.Equal(t, "u7-3", page[1].IdempotencyKey)

	page, _, err = l.ListByUser(ctx, 7, pagination.New(3, 2))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "u7-0", page[0].IdempotencyKey)

	page, total, err = l.ListByUser(ctx, 99, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, page)
}
