package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AlejandroAndrade98/embipos/internal/client"
	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/event"
	"github.com/AlejandroAndrade98/embipos/internal/repository"
	"github.com/AlejandroAndrade98/embipos/internal/session"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
	"github.com/AlejandroAndrade98/embipos/pkg/tracing"
)

const tracerName = "embipos/service"

// CheckoutInput is the operator's checkout request.
type CheckoutInput struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
	CashSessionID *int64 `json:"cashSessionId"`
}

// CheckoutService submits carts as sales.
type CheckoutService struct {
	sessions *session.Registry
	sales    SalesAPI
	ledger   repository.CheckoutLedger
	events   EventPublisher
	methods  []string
	logger   *slog.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service accepting the given
// payment methods.
func NewCheckoutService(sessions *session.Registry, sales SalesAPI, ledger repository.CheckoutLedger, events EventPublisher, methods []string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		sales:    sales,
		ledger:   ledger,
		events:   events,
		methods:  methods,
		logger:   logger,
		now:      time.Now,
	}
}

// Checkout submits the operator's cart as one sale. On success the cart is
// cleared and a receipt returned. On failure the cart is left as it was and
// the error carries the backend message.
func (s *CheckoutService) Checkout(ctx context.Context, op Operator, in CheckoutInput) (receipt *domain.SaleReceipt, err error) {
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		return nil, apperrors.InvalidInput("payment method is required")
	}
	if !slices.Contains(s.methods, method) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", in.PaymentMethod))
	}

	sess, release, ok := s.sessions.BeginCheckout(op.SessionID)
	if !ok {
		checkoutsTotal.WithLabelValues(resultRejected).Inc()
		return nil, apperrors.Conflict("checkout already in progress")
	}
	defer release()

	ctx, span := tracing.Start(ctx, tracerName, "checkout")
	defer func() { tracing.End(span, err) }()

	err = sess.Do(func(c *domain.Cart) error {
		if c.IsEmpty() {
			return apperrors.InvalidInput("cart is empty")
		}

		key := sess.IdempotencyKey(paymentTerms(method, in.CashSessionID))
		lines, total := c.Lines(), c.Total()

		attempt := s.beginAttempt(ctx, op, key, method, lines, total)

		req := domain.NewSaleRequest(c, op.UserID, in.CashSessionID, method)
		start := s.now()
		saleID, err := s.sales.CreateSale(ctx, op.Token, key, req)
		checkoutDuration.Observe(s.now().Sub(start).Seconds())
		if err != nil {
			checkoutsTotal.WithLabelValues(resultFailed).Inc()
			s.finishAttempt(ctx, attempt, func(a *domain.CheckoutAttempt) error {
				return a.Fail(failureReason(err))
			})
			rejected := isDefinitiveRejection(err)
			if rejected {
				sess.RotateKey()
			}
			s.logger.WarnContext(ctx, "sale submission failed",
				slog.String("idempotency_key", key),
				slog.Bool("rejected", rejected),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("create sale: %w", err)
		}

		checkoutsTotal.WithLabelValues(resultSucceeded).Inc()
		s.finishAttempt(ctx, attempt, func(a *domain.CheckoutAttempt) error {
			return a.Succeed(saleID)
		})
		c.Clear()
		receipt = s.receipt(attempt, saleID)
		return nil
	})
	if errors.Is(err, session.ErrRetired) {
		return nil, apperrors.Unauthorized("session ended")
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "sale completed",
		slog.Int64("sale_id", receipt.SaleID),
		slog.String("payment_method", receipt.PaymentMethod),
		slog.Float64("total", receipt.Total),
	)

	if err := s.events.PublishSaleCompleted(ctx, op.SessionID, op.UserID, receipt); err != nil {
		s.logger.WarnContext(ctx, "failed to publish sale completed event", slog.String("error", err.Error()))
	}
	if err := s.events.PublishCartCleared(ctx, op.SessionID, op.UserID, event.ClearReasonSale); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart cleared event", slog.String("error", err.Error()))
	}

	return receipt, nil
}

// beginAttempt records a pending attempt for key, or moves the failed attempt
// recorded under key back to pending. Keys are bound to the cart version and
// payment terms, so an existing row always describes the same payload.
// Ledger errors are logged and never block a sale.
func (s *CheckoutService) beginAttempt(ctx context.Context, op Operator, key, method string, lines []domain.CartLine, total float64) *domain.CheckoutAttempt {
	existing, err := s.ledger.Get(ctx, key)
	switch {
	case err == nil:
		if err := existing.Retry(); err != nil {
			s.logger.WarnContext(ctx, "cannot retry checkout attempt", slog.String("idempotency_key", key), slog.String("error", err.Error()))
		}
		if err := s.ledger.Update(ctx, existing); err != nil {
			s.logger.WarnContext(ctx, "failed to update checkout attempt", slog.String("idempotency_key", key), slog.String("error", err.Error()))
		}
		return existing
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		s.logger.WarnContext(ctx, "failed to read checkout ledger", slog.String("idempotency_key", key), slog.String("error", err.Error()))
	}

	attempt := domain.NewCheckoutAttempt(key, op.SessionID, op.UserID, method, lines, total)
	if err := s.ledger.Create(ctx, attempt); err != nil {
		s.logger.WarnContext(ctx, "failed to record checkout attempt", slog.String("idempotency_key", key), slog.String("error", err.Error()))
	}
	return attempt
}

func (s *CheckoutService) finishAttempt(ctx context.Context, attempt *domain.CheckoutAttempt, transition func(*domain.CheckoutAttempt) error) {
	if err := transition(attempt); err != nil {
		s.logger.WarnContext(ctx, "invalid checkout attempt transition",
			slog.String("idempotency_key", attempt.IdempotencyKey),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.ledger.Update(ctx, attempt); err != nil {
		s.logger.WarnContext(ctx, "failed to update checkout attempt",
			slog.String("idempotency_key", attempt.IdempotencyKey),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) receipt(a *domain.CheckoutAttempt, saleID int64) *domain.SaleReceipt {
	return &domain.SaleReceipt{
		SaleID:         saleID,
		IdempotencyKey: a.IdempotencyKey,
		Total:          a.Total,
		Lines:          a.Lines,
		PaymentMethod:  a.PaymentMethod,
		CompletedAt:    s.now().UTC(),
	}
}

// ListAttempts returns one page of the operator's checkout attempts.
func (s *CheckoutService) ListAttempts(ctx context.Context, op Operator, params pagination.Params) (pagination.Result[domain.CheckoutAttempt], error) {
	attempts, total, err := s.ledger.ListByUser(ctx, op.UserID, params)
	if err != nil {
		return pagination.Result[domain.CheckoutAttempt]{}, fmt.Errorf("list checkout attempts: %w", err)
	}
	return pagination.NewResult(attempts, total, params), nil
}

// paymentTerms identifies the non-cart part of a sale payload.
func paymentTerms(method string, cashSessionID *int64) string {
	if cashSessionID == nil {
		return method
	}
	return method + "|" + strconv.FormatInt(*cashSessionID, 10)
}

// isDefinitiveRejection reports whether the backend answered and refused the
// sale. Resubmitting the same key would only replay that answer. Timeouts,
// rate limits, in-flight conflicts, 5xx and transport errors leave the
// outcome unknown and keep the key.
func isDefinitiveRejection(err error) bool {
	var remote *client.RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	switch remote.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return remote.StatusCode >= 400 && remote.StatusCode < 500
}

func failureReason(err error) string {
	var remote *client.RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
