package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AlejandroAndrade98/embipos/internal/client"
	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/event"
	"github.com/AlejandroAndrade98/embipos/internal/repository/memory"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
)

var testMethods = []string{"cash", "card", "transfer", "nequi"}

type checkoutFixture struct {
	cart   *CartService
	svc    *CheckoutService
	sales  *mockSalesAPI
	ledger *memory.Ledger
	events *eventRecorder
	keys   []string
	keysMu sync.Mutex
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	registry := session.NewRegistry(newTestLogger())
	f := &checkoutFixture{
		sales:  new(mockSalesAPI),
		ledger: memory.NewLedger(),
		events: &eventRecorder{},
	}
	f.cart = NewCartService(registry, new(mockLookup), f.events, domain.StockPolicyNone, newTestLogger())
	f.svc = NewCheckoutService(registry, f.sales, f.ledger, f.events, testMethods, newTestLogger())
	return f
}

// expectSale registers a CreateSale expectation that records the
// idempotency key it was called with.
func (f *checkoutFixture) expectSale(saleID int64, err error) *mock.Call {
	return f.sales.On("CreateSale", mock.Anything, "api-token", mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			f.keysMu.Lock()
			defer f.keysMu.Unlock()
			f.keys = append(f.keys, args.String(2))
		}).
		Return(saleID, err).
		Once()
}

func (f *checkoutFixture) fill(t *testing.T, op Operator) {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.AddProduct(ctx, op, domain.ProductRef{SKU: "TORT-CHOC", Name: "Torta de chocolate", Price: 85000})
	require.NoError(t, err)
	_, err = f.cart.AddProduct(ctx, op, domain.ProductRef{SKU: "TORT-CHOC", Name: "Torta de chocolate", Price: 85000})
	require.NoError(t, err)
	_, err = f.cart.AddProduct(ctx, op, domain.ProductRef{SKU: "CHEESE", Name: "Cheesecake", Price: 90000})
	require.NoError(t, err)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Checkout(context.Background(), cashier(), CheckoutInput{PaymentMethod: "cash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "cart is empty", appErr.Message)

	f.sales.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events.kinds())
}

func TestCheckout_PaymentMethod(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fill(t, cashier())

	for _, method := range []string{"", "bitcoin"} {
		_, err := f.svc.Checkout(context.Background(), cashier(), CheckoutInput{PaymentMethod: method})
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "method %q", method)
	}
	f.sales.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 3, f.cart.GetCart(context.Background(), cashier()).ItemCount)
}

func TestCheckout_Success(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	cashSession := int64(12)
	f.sales.On("CreateSale", mock.Anything, "api-token", mock.AnythingOfType("string"), domain.SaleRequest{
		UserID:        7,
		CashSessionID: &cashSession,
		PaymentMethod: "card",
		Items:         []domain.SaleItem{{SKU: "TORT-CHOC", Qty: 2}, {SKU: "CHEESE", Qty: 1}},
	}).Return(int64(501), nil).Once()

	receipt, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: " Card ", CashSessionID: &cashSession})
	require.NoError(t, err)

	assert.Equal(t, int64(501), receipt.SaleID)
	assert.Equal(t, 260000.0, receipt.Total)
	assert.Equal(t, "card", receipt.PaymentMethod)
	assert.Len(t, receipt.Lines, 2)
	assert.NotEmpty(t, receipt.IdempotencyKey)

	assert.Empty(t, f.cart.GetCart(ctx, op).Lines, "cart is cleared by a successful checkout")

	attempt, err := f.ledger.Get(ctx, receipt.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSucceeded, attempt.Status)
	require.NotNil(t, attempt.SaleID)
	assert.Equal(t, int64(501), *attempt.SaleID)

	kinds := f.events.kinds()
	assert.Equal(t, []string{"cart.updated", "cart.updated", "cart.updated", "sale.completed", "cart.cleared"}, kinds)
	assert.Equal(t, event.ClearReasonSale, f.events.events[4].reason)
	f.sales.AssertExpectations(t)
}

func TestCheckout_RejectedSaleKeepsCartAndRotatesKey(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	f.expectSale(0, &client.RemoteError{Service: "pos-api", StatusCode: 400, Message: "Stock insuficiente"})
	_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
	require.Error(t, err)

	var remote *client.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "Stock insuficiente", remote.Message)
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
	assert.Equal(t, 3, f.cart.GetCart(ctx, op).ItemCount, "cart untouched after a failed sale")

	rejected, err := f.ledger.Get(ctx, f.keys[0])
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptFailed, rejected.Status)
	assert.Equal(t, "Stock insuficiente", rejected.FailureReason)

	f.expectSale(502, nil)
	receipt, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
	require.NoError(t, err)

	require.Len(t, f.keys, 2)
	assert.NotEqual(t, f.keys[0], f.keys[1], "a refused sale is resubmitted under a fresh key")
	assert.Equal(t, f.keys[1], receipt.IdempotencyKey)

	rejected, err = f.ledger.Get(ctx, f.keys[0])
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptFailed, rejected.Status)

	accepted, err := f.ledger.Get(ctx, f.keys[1])
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSucceeded, accepted.Status)

	_, total, err := f.ledger.ListByUser(ctx, op.UserID, pagination.New(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCheckout_AmbiguousFailureReusesKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", &client.RemoteError{Service: "pos-api", StatusCode: 503, Message: "unavailable"}},
		{"in-flight conflict", &client.RemoteError{Service: "pos-api", StatusCode: 409, Message: "request in progress"}},
		{"rate limited", &client.RemoteError{Service: "pos-api", StatusCode: 429, Message: "slow down"}},
		{"request timeout", &client.RemoteError{Service: "pos-api", StatusCode: 408, Message: "timeout"}},
		{"circuit open", fmt.Errorf("pos-api: %w", apperrors.ErrServiceUnavail)},
		{"transport", errors.New("dial tcp: connection reset by peer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			ctx := context.Background()
			op := cashier()
			f.fill(t, op)

			f.expectSale(0, tt.err)
			_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
			require.Error(t, err)

			f.expectSale(601, nil)
			receipt, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
			require.NoError(t, err)

			require.Len(t, f.keys, 2)
			assert.Equal(t, f.keys[0], f.keys[1], "retry of an unchanged cart reuses the key")
			assert.Equal(t, f.keys[0], receipt.IdempotencyKey)

			attempt, err := f.ledger.Get(ctx, f.keys[0])
			require.NoError(t, err)
			assert.Equal(t, domain.AttemptSucceeded, attempt.Status)
			assert.Empty(t, attempt.FailureReason)

			_, total, err := f.ledger.ListByUser(ctx, op.UserID, pagination.New(1, 20))
			require.NoError(t, err)
			assert.Equal(t, 1, total)
		})
	}
}

func TestCheckout_ChangedPaymentTermsStartNewAttempt(t *testing.T) {
	twelve, thirteen := int64(12), int64(13)
	tests := []struct {
		name          string
		first, second CheckoutInput
	}{
		{"payment method", CheckoutInput{PaymentMethod: "card"}, CheckoutInput{PaymentMethod: "cash"}},
		{"cash session", CheckoutInput{PaymentMethod: "cash", CashSessionID: &twelve}, CheckoutInput{PaymentMethod: "cash", CashSessionID: &thirteen}},
		{"cash session dropped", CheckoutInput{PaymentMethod: "cash", CashSessionID: &twelve}, CheckoutInput{PaymentMethod: "cash"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t)
			ctx := context.Background()
			op := cashier()
			f.fill(t, op)

			f.expectSale(0, &client.RemoteError{Service: "pos-api", StatusCode: 504, Message: "upstream timeout"})
			_, err := f.svc.Checkout(ctx, op, tt.first)
			require.Error(t, err)

			var sent domain.SaleRequest
			f.sales.On("CreateSale", mock.Anything, "api-token", mock.AnythingOfType("string"), mock.Anything).
				Run(func(args mock.Arguments) {
					f.keys = append(f.keys, args.String(2))
					sent = args.Get(3).(domain.SaleRequest)
				}).
				Return(int64(700), nil).
				Once()
			receipt, err := f.svc.Checkout(ctx, op, tt.second)
			require.NoError(t, err)

			require.Len(t, f.keys, 2)
			assert.NotEqual(t, f.keys[0], f.keys[1])
			assert.Equal(t, tt.second.PaymentMethod, sent.PaymentMethod)
			assert.Equal(t, tt.second.CashSessionID, sent.CashSessionID)
			assert.Equal(t, tt.second.PaymentMethod, receipt.PaymentMethod)

			first, err := f.ledger.Get(ctx, f.keys[0])
			require.NoError(t, err)
			assert.Equal(t, domain.AttemptFailed, first.Status)
			assert.Equal(t, tt.first.PaymentMethod, first.PaymentMethod)

			second, err := f.ledger.Get(ctx, f.keys[1])
			require.NoError(t, err)
			assert.Equal(t, domain.AttemptSucceeded, second.Status)
			assert.Equal(t, tt.second.PaymentMethod, second.PaymentMethod)
		})
	}
}

func TestCheckout_SameTermsAfterMethodSwitchGetFreshKey(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	for _, method := range []string{"card", "cash", "card"} {
		f.expectSale(0, &client.RemoteError{Service: "pos-api", StatusCode: 503, Message: "unavailable"})
		_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: method})
		require.Error(t, err)
	}

	require.Len(t, f.keys, 3)
	assert.NotEqual(t, f.keys[0], f.keys[2], "a key is never reused for a different payload in between")

	attempts, total, err := f.ledger.ListByUser(ctx, op.UserID, pagination.New(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, a := range attempts {
		assert.Equal(t, domain.AttemptFailed, a.Status)
	}
}

func TestIsDefinitiveRejection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&client.RemoteError{StatusCode: 400}, true},
		{&client.RemoteError{StatusCode: 401}, true},
		{&client.RemoteError{StatusCode: 422}, true},
		{fmt.Errorf("create sale: %w", &client.RemoteError{StatusCode: 404}), true},
		{&client.RemoteError{StatusCode: 408}, false},
		{&client.RemoteError{StatusCode: 409}, false},
		{&client.RemoteError{StatusCode: 425}, false},
		{&client.RemoteError{StatusCode: 429}, false},
		{&client.RemoteError{StatusCode: 500}, false},
		{&client.RemoteError{StatusCode: 502}, false},
		{apperrors.Remote(400, "not from the wire"), false},
		{context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isDefinitiveRejection(tt.err), "%v", tt.err)
	}
}

func TestCheckout_KeyRotatesAfterCartChange(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	f.expectSale(0, apperrors.Remote(500, "boom"))
	_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
	require.Error(t, err)

	_, err = f.cart.RemoveItem(ctx, op, "CHEESE")
	require.NoError(t, err)

	f.expectSale(0, apperrors.Remote(500, "boom"))
	_, err = f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
	require.Error(t, err)

	require.Len(t, f.keys, 2)
	assert.NotEqual(t, f.keys[0], f.keys[1])
}

func TestCheckout_ConcurrentCheckoutConflicts(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	started := make(chan struct{})
	proceed := make(chan struct{})
	f.sales.On("CreateSale", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-proceed
		}).
		Return(int64(900), nil).
		Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
		done <- err
	}()

	<-started
	_, err := f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	close(proceed)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first checkout did not finish")
	}
	f.sales.AssertNumberOfCalls(t, "CreateSale", 1)
}

type brokenLedger struct{}

func (brokenLedger) Create(context.Context, *domain.CheckoutAttempt) error {
	return errors.New("ledger down")
}

func (brokenLedger) Get(context.Context, string) (*domain.CheckoutAttempt, error) {
	return nil, errors.New("ledger down")
}

func (brokenLedger) Update(context.Context, *domain.CheckoutAttempt) error {
	return errors.New("ledger down")
}

func (brokenLedger) ListByUser(context.Context, int64, pagination.Params) ([]domain.CheckoutAttempt, int, error) {
	return nil, 0, errors.New("ledger down")
}

func TestCheckout_LedgerFailureDoesNotBlockSale(t *testing.T) {
	registry := session.NewRegistry(newTestLogger())
	events := &eventRecorder{}
	sales := new(mockSalesAPI)
	cart := NewCartService(registry, new(mockLookup), events, domain.StockPolicyNone, newTestLogger())
	svc := NewCheckoutService(registry, sales, brokenLedger{}, events, testMethods, newTestLogger())
	ctx := context.Background()
	op := cashier()

	_, err := cart.AddProduct(ctx, op, domain.ProductRef{SKU: "CHEESE", Price: 90000})
	require.NoError(t, err)
	sales.On("CreateSale", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	receipt, err := svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "nequi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.SaleID)

	_, err = svc.ListAttempts(ctx, op, pagination.New(1, 20))
	assert.Error(t, err)
}

func TestCheckout_ListAttempts(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	op := cashier()
	f.fill(t, op)

	f.expectSale(0, apperrors.Remote(400, "Caja cerrada"))
	_, _ = f.svc.Checkout(ctx, op, CheckoutInput{PaymentMethod: "cash"})

	res, err := f.svc.ListAttempts(ctx, op, pagination.New(1, 10))
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, domain.AttemptFailed, res.Data[0].Status)
	assert.Equal(t, "Caja cerrada", res.Data[0].FailureReason)

	other, err := f.svc.ListAttempts(ctx, leader(), pagination.New(1, 10))
	require.NoError(t, err)
	assert.Empty(t, other.Data)
}
