// Package memory holds the in-process checkout ledger used when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
)

// Ledger is a CheckoutLedger kept in memory. It is lost on restart.
type Ledger struct {
	mu       sync.RWMutex
	attempts map[string]domain.CheckoutAttempt
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{attempts: make(map[string]domain.CheckoutAttempt)}
}

// Create inserts a new attempt.
func (l *Ledger) Create(_ context.Context, a *domain.CheckoutAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.attempts[a.IdempotencyKey]; ok {
		return apperrors.AlreadyExists("checkout_attempt", "idempotency_key", a.IdempotencyKey)
	}
	l.attempts[a.IdempotencyKey] = clone(*a)
	return nil
}

// Get returns the attempt for key.
func (l *Ledger) Get(_ context.Context, key string) (*domain.CheckoutAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.attempts[key]
	if !ok {
		return nil, apperrors.NotFound("checkout_attempt", key)
	}
	a = clone(a)
	return &a, nil
}

// Update replaces the stored attempt.
func (l *Ledger) Update(_ context.Context, a *domain.CheckoutAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.attempts[a.IdempotencyKey]; !ok {
		return apperrors.NotFound("checkout_attempt", a.IdempotencyKey)
	}
	l.attempts[a.IdempotencyKey] = clone(*a)
	return nil
}

// ListByUser returns a page of the user's attempts, newest first.
func (l *Ledger) ListByUser(_ context.Context, userID int64, params pagination.Params) ([]domain.CheckoutAttempt, int, error) {
	l.mu.RLock()
	var mine []domain.CheckoutAttempt
	for _, a := range l.attempts {
		if a.UserID == userID {
			mine = append(mine, clone(a))
		}
	}
	l.mu.RUnlock()

	sort.Slice(mine, func(i, j int) bool {
		if mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].IdempotencyKey < mine[j].IdempotencyKey
		}
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})

	start, end := params.Window(len(mine))
	return mine[start:end], len(mine), nil
}

func clone(a domain.CheckoutAttempt) domain.CheckoutAttempt {
	a.Lines = append([]domain.CartLine(nil), a.Lines...)
	if a.SaleID != nil {
		id := *a.SaleID
		a.SaleID = &id
	}
	return a
}
