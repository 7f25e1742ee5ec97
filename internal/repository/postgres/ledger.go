package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/pkg/database"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
)

const uniqueViolation = "23505"

const attemptColumns = `idempotency_key, session_id, user_id, payment_method, lines,
			total, status, sale_id, failure_reason, created_at, updated_at`

// Ledger implements repository.CheckoutLedger using PostgreSQL.
type Ledger struct {
	db database.DBTX
}

// NewLedger creates a new PostgreSQL-backed checkout ledger.
func NewLedger(db database.DBTX) *Ledger {
	return &Ledger{db: db}
}

// Create inserts a new checkout attempt.
func (l *Ledger) Create(ctx context.Context, a *domain.CheckoutAttempt) (err error) {
	linesJSON, err := json.Marshal(a.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	query := `
		INSERT INTO checkout_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "InsertCheckoutAttempt", query)
	defer func() { end(err) }()

	_, err = l.db.Exec(ctx, query,
		a.IdempotencyKey,
		a.SessionID,
		a.UserID,
		a.PaymentMethod,
		linesJSON,
		a.Total,
		a.Status,
		a.SaleID,
		nullableString(a.FailureReason),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyExists("checkout_attempt", "idempotency_key", a.IdempotencyKey)
		}
		return fmt.Errorf("insert checkout attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by idempotency key.
func (l *Ledger) Get(ctx context.Context, key string) (_ *domain.CheckoutAttempt, err error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM checkout_attempts
		WHERE idempotency_key = $1`

	ctx, end := database.TraceQuery(ctx, "GetCheckoutAttempt", query)
	defer func() { end(err) }()

	a, err := scanAttempt(l.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout_attempt", key)
		}
		return nil, fmt.Errorf("get checkout attempt: %w", err)
	}
	return a, nil
}

// Update stores the outcome of an attempt.
func (l *Ledger) Update(ctx context.Context, a *domain.CheckoutAttempt) (err error) {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE checkout_attempts
		SET status = $1, sale_id = $2, failure_reason = $3, updated_at = $4
		WHERE idempotency_key = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateCheckoutAttempt", query)
	defer func() { end(err) }()

	ct, err := l.db.Exec(ctx, query,
		a.Status,
		a.SaleID,
		nullableString(a.FailureReason),
		a.UpdatedAt,
		a.IdempotencyKey,
	)
	if err != nil {
		return fmt.Errorf("update checkout attempt: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("checkout_attempt", a.IdempotencyKey)
	}
	return nil
}

// ListByUser returns a page of the user's attempts, newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID int64, params pagination.Params) (_ []domain.CheckoutAttempt, _ int, err error) {
	countQuery := `SELECT COUNT(*) FROM checkout_attempts WHERE user_id = $1`
	query := `
		SELECT ` + attemptColumns + `
		FROM checkout_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC, idempotency_key
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListCheckoutAttempts", query)
	defer func() { end(err) }()

	var total int
	if err := l.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count checkout attempts: %w", err)
	}

	rows, err := l.db.Query(ctx, query, userID, params.PerPage, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list checkout attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.CheckoutAttempt, 0, params.PerPage)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan checkout attempt row: %w", err)
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate checkout attempts: %w", err)
	}
	return attempts, total, nil
}

func scanAttempt(row pgx.Row) (*domain.CheckoutAttempt, error) {
	var (
		a             domain.CheckoutAttempt
		linesJSON     []byte
		saleID        pgtype.Int8
		failureReason pgtype.Text
	)
	if err := row.Scan(
		&a.IdempotencyKey,
		&a.SessionID,
		&a.UserID,
		&a.PaymentMethod,
		&linesJSON,
		&a.Total,
		&a.Status,
		&saleID,
		&failureReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(linesJSON, &a.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}
	if saleID.Valid {
		id := saleID.Int64
		a.SaleID = &id
	}
	a.FailureReason = failureReason.String
	return &a, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
