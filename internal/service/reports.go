package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

const dateLayout = "2006-01-02"

// ReportService reads sales reports in the store's timezone.
type ReportService struct {
	api     ReportsAPI
	loc     *time.Location
	maxDays int
	now     func() time.Time
}

// NewReportService creates a new report service. Range queries may span at
// most maxDays days.
func NewReportService(api ReportsAPI, loc *time.Location, maxDays int) *ReportService {
	return &ReportService{api: api, loc: loc, maxDays: maxDays, now: time.Now}
}

// Today returns the current date in the store's timezone.
func (s *ReportService) Today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// Daily returns the report of date, or of today when date is empty.
func (s *ReportService) Daily(ctx context.Context, op Operator, date string) (*domain.DailyReport, error) {
	if date == "" {
		date = s.Today()
	} else if _, err := parseDate("date", date); err != nil {
		return nil, err
	}

	r, err := s.api.DailyReport(ctx, op.Token, date)
	if err != nil {
		return nil, fmt.Errorf("daily report %s: %w", date, err)
	}
	return r, nil
}

// Range returns per-day totals for [from, to]. The summary is always set,
// derived from the days when the backend leaves it out.
func (s *ReportService) Range(ctx context.Context, op Operator, from, to string) (*domain.RangeReport, error) {
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}
	return s.fetchRange(ctx, op, from, to)
}

func (s *ReportService) fetchRange(ctx context.Context, op Operator, from, to string) (*domain.RangeReport, error) {
	r, err := s.api.RangeReport(ctx, op.Token, from, to)
	if err != nil {
		return nil, fmt.Errorf("range report %s..%s: %w", from, to, err)
	}
	summary := r.Summary()
	r.Sales = &summary
	return r, nil
}

// Rows returns the tabular form of a report: one row for a single day, one
// row per day for a range. An empty from means today.
func (s *ReportService) Rows(ctx context.Context, op Operator, from, to string) ([]domain.ReportRow, error) {
	if from == "" && to == "" {
		from = s.Today()
	}
	if to == "" || to == from {
		r, err := s.Daily(ctx, op, from)
		if err != nil {
			return nil, err
		}
		return r.Rows(), nil
	}

	r, err := s.Range(ctx, op, from, to)
	if err != nil {
		return nil, err
	}
	return r.Rows(), nil
}

func (s *ReportService) checkRange(from, to string) error {
	f, err := parseDate("from", from)
	if err != nil {
		return err
	}
	t, err := parseDate("to", to)
	if err != nil {
		return err
	}
	if t.Before(f) {
		return apperrors.InvalidInput("from must not be after to")
	}
	if days := int(t.Sub(f).Hours()/24) + 1; days > s.maxDays {
		return apperrors.InvalidInput(fmt.Sprintf("range spans %d days, at most %d allowed", days, s.maxDays))
	}
	return nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, apperrors.InvalidInput(field + " is required")
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return t, nil
}
