package domain

import "github.com/shopspring/decimal"

// Goals are the sales targets configured for the store.
type Goals struct {
	DailyTarget   float64 `json:"dailyTarget"`
	MonthlyTarget float64 `json:"monthlyTarget"`
}

// GoalsPatch changes only the non-nil targets.
type GoalsPatch struct {
	DailyTarget   *float64 `json:"dailyTarget,omitempty" validate:"omitempty,gte=0"`
	MonthlyTarget *float64 `json:"monthlyTarget,omitempty" validate:"omitempty,gte=0"`
}

// IsEmpty reports whether the patch changes nothing.
func (p GoalsPatch) IsEmpty() bool {
	return p.DailyTarget == nil && p.MonthlyTarget == nil
}

// Apply returns g with the patch merged in.
func (p GoalsPatch) Apply(g Goals) Goals {
	if p.DailyTarget != nil {
		g.DailyTarget = *p.DailyTarget
	}
	if p.MonthlyTarget != nil {
		g.MonthlyTarget = *p.MonthlyTarget
	}
	return g
}

// Progress compares what was sold with a target.
type Progress struct {
	Target    float64 `json:"target"`
	Achieved  float64 `json:"achieved"`
	Remaining float64 `json:"remaining"`
	Ratio     float64 `json:"ratio"`
}

// NewProgress computes the ratio achieved/target rounded to 4 decimals. The
// ratio is 0 when no target is set and may exceed 1.
func NewProgress(target, achieved float64) Progress {
	t := decimal.NewFromFloat(target)
	a := decimal.NewFromFloat(achieved)

	p := Progress{Target: target, Achieved: achieved}
	if rem := t.Sub(a); rem.IsPositive() {
		p.Remaining = rem.Round(2).InexactFloat64()
	}
	if t.IsPositive() {
		p.Ratio = a.Div(t).Round(4).InexactFloat64()
	}
	return p
}

// GoalProgress is today's and this month's progress.
type GoalProgress struct {
	Date    string   `json:"date"`
	Daily   Progress `json:"daily"`
	Monthly Progress `json:"monthly"`
}
