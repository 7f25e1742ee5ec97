package domain

import "github.com/shopspring/decimal"

// SalesSummary aggregates sales over a period.
type SalesSummary struct {
	Count     int     `json:"count" validate:"gte=0"`
	SumTotal  float64 `json:"sumTotal" validate:"gte=0"`
	AvgTicket float64 `json:"avgTicket" validate:"gte=0"`
}

// PaymentTotal is the amount collected with one payment method.
type PaymentTotal struct {
	PaymentMethod string  `json:"paymentMethod" validate:"required"`
	Total         float64 `json:"total" validate:"gte=0"`
}

// TopProduct is one of the best sellers of a day.
type TopProduct struct {
	ProductID int64   `json:"productId"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty" validate:"gte=0"`
	Total     float64 `json:"total" validate:"gte=0"`
}

// DateRange is an inclusive range of instants or dates as sent by the API.
type DateRange struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// DailyReport summarizes one business day.
type DailyReport struct {
	Date        string         `json:"date" validate:"required"`
	Range       DateRange      `json:"range"`
	Sales       SalesSummary   `json:"sales"`
	ByPayment   []PaymentTotal `json:"byPayment" validate:"required,dive"`
	TopProducts []TopProduct   `json:"topProducts,omitempty" validate:"omitempty,dive"`
}

// RangeDay is one day of a range report.
type RangeDay struct {
	Day       string  `json:"day" validate:"required"`
	Count     int     `json:"count" validate:"gte=0"`
	SumTotal  float64 `json:"sumTotal" validate:"gte=0"`
	AvgTicket float64 `json:"avgTicket" validate:"gte=0"`
}

// RangeReport covers several days. Sales may be missing from the backend
// answer; see Summary.
type RangeReport struct {
	From  string        `json:"from" validate:"required"`
	To    string        `json:"to" validate:"required"`
	Days  []RangeDay    `json:"days" validate:"required,dive"`
	Sales *SalesSummary `json:"sales,omitempty"`
}

// Summary returns Sales, or derives it from Days when absent.
func (r *RangeReport) Summary() SalesSummary {
	if r.Sales != nil {
		return *r.Sales
	}
	var count int
	sum := decimal.Zero
	for _, d := range r.Days {
		count += d.Count
		sum = sum.Add(decimal.NewFromFloat(d.SumTotal))
	}
	return SalesSummary{
		Count:     count,
		SumTotal:  sum.InexactFloat64(),
		AvgTicket: AvgTicket(sum, count),
	}
}

// AvgTicket is sum/count rounded to 2 decimals, 0 when count is 0.
func AvgTicket(sum decimal.Decimal, count int) float64 {
	if count <= 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(count))).Round(2).InexactFloat64()
}

// ReportRow is a tabular line used for exports.
type ReportRow struct {
	Date     string  `json:"date"`
	Items    int     `json:"items"`
	Subtotal float64 `json:"subtotal"`
	Total    float64 `json:"total"`
}

// Rows maps a daily report to a single row.
func (r *DailyReport) Rows() []ReportRow {
	total := round2(r.Sales.SumTotal)
	return []ReportRow{{
		Date:     r.Date,
		Items:    r.Sales.Count,
		Subtotal: total,
		Total:    total,
	}}
}

// Rows maps a range report to one row per day.
func (r *RangeReport) Rows() []ReportRow {
	rows := make([]ReportRow, 0, len(r.Days))
	for _, d := range r.Days {
		total := round2(d.SumTotal)
		rows = append(rows, ReportRow{
			Date:     d.Day,
			Items:    d.Count,
			Subtotal: total,
			Total:    total,
		})
	}
	return rows
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
