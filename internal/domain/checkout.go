package domain

import (
	"errors"
	"fmt"
	"time"
)

// Checkout attempt status constants.
const (
	AttemptPending   = "pending"
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// ErrInvalidTransition is returned when an attempt is moved out of a final
// state.
var ErrInvalidTransition = errors.New("invalid checkout attempt transition")

// CheckoutAttempt is one submission of a cart to the sales endpoint, as
// recorded in the checkout ledger. The idempotency key identifies it.
type CheckoutAttempt struct {
	IdempotencyKey string     `json:"idempotency_key"`
	SessionID      string     `json:"session_id"`
	UserID         int64      `json:"user_id"`
	PaymentMethod  string     `json:"payment_method"`
	Lines          []CartLine `json:"lines"`
	Total          float64    `json:"total"`
	Status         string     `json:"status"`
	SaleID         *int64     `json:"sale_id,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewCheckoutAttempt creates a pending attempt for the given cart snapshot.
func NewCheckoutAttempt(key, sessionID string, userID int64, method string, lines []CartLine, total float64) *CheckoutAttempt {
	now := time.Now().UTC()
	return &CheckoutAttempt{
		IdempotencyKey: key,
		SessionID:      sessionID,
		UserID:         userID,
		PaymentMethod:  method,
		Lines:          lines,
		Total:          total,
		Status:         AttemptPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Succeed marks the attempt as accepted by the backend.
func (a *CheckoutAttempt) Succeed(saleID int64) error {
	if a.Status == AttemptSucceeded {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, AttemptSucceeded)
	}
	a.Status = AttemptSucceeded
	a.SaleID = &saleID
	a.FailureReason = ""
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail marks the attempt as rejected or unanswered.
func (a *CheckoutAttempt) Fail(reason string) error {
	if a.Status != AttemptPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, AttemptFailed)
	}
	a.Status = AttemptFailed
	a.FailureReason = reason
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Retry moves a failed attempt back to pending so it can be resubmitted
// with the same key.
func (a *CheckoutAttempt) Retry() error {
	switch a.Status {
	case AttemptPending:
		return nil
	case AttemptFailed:
		a.Status = AttemptPending
		a.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, AttemptPending)
	}
}

// IsValidAttemptStatus checks a ledger status value.
func IsValidAttemptStatus(status string) bool {
	switch status {
	case AttemptPending, AttemptSucceeded, AttemptFailed:
		return true
	}
	return false
}
