package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/validator"
)

// DailyReport fetches the report of one day (YYYY-MM-DD). An empty date
// lets the backend pick today.
func (c *Client) DailyReport(ctx context.Context, token, date string) (*domain.DailyReport, error) {
	var query url.Values
	if date != "" {
		query = url.Values{"date": {date}}
	}

	var r domain.DailyReport
	if err := c.do(ctx, call{
		op:     "daily_report",
		method: http.MethodGet,
		path:   "/reports/daily",
		query:  query,
		token:  token,
		out:    &r,
	}); err != nil {
		return nil, err
	}
	if r.ByPayment == nil {
		r.ByPayment = []domain.PaymentTotal{}
	}
	if err := validator.Validate(&r); err != nil {
		return nil, c.invalidReport(ctx, "daily", err)
	}
	return &r, nil
}

// RangeReport fetches per-day totals for [from, to].
func (c *Client) RangeReport(ctx context.Context, token, from, to string) (*domain.RangeReport, error) {
	var r domain.RangeReport
	if err := c.do(ctx, call{
		op:     "range_report",
		method: http.MethodGet,
		path:   "/reports/range",
		query:  url.Values{"from": {from}, "to": {to}},
		token:  token,
		out:    &r,
	}); err != nil {
		return nil, err
	}
	if r.Days == nil {
		r.Days = []domain.RangeDay{}
	}
	if err := validator.Validate(&r); err != nil {
		return nil, c.invalidReport(ctx, "range", err)
	}
	return &r, nil
}

func (c *Client) invalidReport(ctx context.Context, kind string, err error) error {
	c.logger.WarnContext(ctx, "POS API sent an invalid report",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("validate %s report: %w", kind,
		apperrors.Remote(http.StatusBadGateway, "invalid "+kind+" report from POS API"))
}
