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
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

// 03:00 UTC on the 15th is still the 14th in Bogotá.
var reportNow = time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)

func newTestReportService(t *testing.T) (*ReportService, *mockReportsAPI) {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	api := new(mockReportsAPI)
	svc := NewReportService(api, loc, 31)
	svc.now = func() time.Time { return reportNow }
	return svc, api
}

func dailyReport(date string, count int, sum float64) *domain.DailyReport {
	return &domain.DailyReport{
		Date:      date,
		Range:     domain.DateRange{From: date + "T05:00:00Z", To: date + "T05:00:00Z"},
		Sales:     domain.SalesSummary{Count: count, SumTotal: sum, AvgTicket: domain.AvgTicket(decimalOf(sum), count)},
		ByPayment: []domain.PaymentTotal{{PaymentMethod: "cash", Total: sum}},
	}
}

func TestReportService_Daily_DefaultsToLocalToday(t *testing.T) {
	svc, api := newTestReportService(t)
	api.On("DailyReport", mock.Anything, "api-token", "2026-03-14").Return(dailyReport("2026-03-14", 2, 175000), nil)

	r, err := svc.Daily(context.Background(), cashier(), "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", r.Date)
	assert.Equal(t, "2026-03-14", svc.Today())
}

func TestReportService_Daily_InvalidDate(t *testing.T) {
	svc, api := newTestReportService(t)

	_, err := svc.Daily(context.Background(), cashier(), "14/03/2026")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	api.AssertNotCalled(t, "DailyReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportService_Range_Validation(t *testing.T) {
	svc, api := newTestReportService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
	}{
		{"missing from", "", "2026-03-14"},
		{"missing to", "2026-03-01", ""},
		{"bad format", "2026-3-1", "2026-03-14"},
		{"reversed", "2026-03-14", "2026-03-01"},
		{"too long", "2026-01-01", "2026-03-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Range(ctx, cashier(), tt.from, tt.to)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
	api.AssertNotCalled(t, "RangeReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReportService_Range_DerivesSummary(t *testing.T) {
	svc, api := newTestReportService(t)
	api.On("RangeReport", mock.Anything, "api-token", "2026-03-01", "2026-03-31").Return(&domain.RangeReport{
		From: "2026-03-01",
		To:   "2026-03-31",
		Days: []domain.RangeDay{
			{Day: "2026-03-01", Count: 2, SumTotal: 170000},
			{Day: "2026-03-02", Count: 1, SumTotal: 90000.1},
		},
	}, nil)

	r, err := svc.Range(context.Background(), cashier(), "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.NotNil(t, r.Sales)
	assert.Equal(t, 3, r.Sales.Count)
	assert.InDelta(t, 260000.1, r.Sales.SumTotal, 1e-9)
	assert.Equal(t, 86666.7, r.Sales.AvgTicket)
}

func TestReportService_Rows(t *testing.T) {
	svc, api := newTestReportService(t)
	ctx := context.Background()

	api.On("DailyReport", mock.Anything, "api-token", "2026-03-14").Return(dailyReport("2026-03-14", 2, 175000.456), nil)
	rows, err := svc.Rows(ctx, cashier(), "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ReportRow{Date: "2026-03-14", Items: 2, Subtotal: 175000.46, Total: 175000.46}, rows[0])

	api.On("RangeReport", mock.Anything, "api-token", "2026-03-01", "2026-03-02").Return(&domain.RangeReport{
		From: "2026-03-01",
		To:   "2026-03-02",
		Days: []domain.RangeDay{
			{Day: "2026-03-01", Count: 2, SumTotal: 170000},
			{Day: "2026-03-02", Count: 0, SumTotal: 0},
		},
	}, nil)
	rows, err = svc.Rows(ctx, cashier(), "2026-03-01", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-02", rows[1].Date)
	assert.Equal(t, 0, rows[1].Items)
}
