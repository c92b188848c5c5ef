package usecase

const (
	DefaultPlanStart       = 100.0
	DefaultPlanDailyTarget = 0.20
	DefaultPlanDays        = 365
	maxPlanDays            = 3650
)

// PlanRow is one day of a compounding schedule.
type PlanRow struct {
	Day            int     `json:"day"`
	DailyTargetPct float64 `json:"dailyTargetPct"`
	TargetPnL      float64 `json:"targetPnL"`
	TargetEquity   float64 `json:"targetEquity"`
}

// BuildCompoundingPlan grows start by dailyTarget (a fraction, 0.2 = 20%)
// every day. Monetary fields are rounded to cents; the running equity is not.
func BuildCompoundingPlan(start, dailyTarget float64, days int) []PlanRow {
	if days < 0 {
		days = 0
	}
	if days > maxPlanDays {
		days = maxPlanDays
	}
	rows := make([]PlanRow, 0, days)
	eq := start
	for d := 1; d <= days; d++ {
		pnl := eq * dailyTarget
		eq *= 1 + dailyTarget
		rows = append(rows, PlanRow{
			Day:            d,
			DailyTargetPct: dailyTarget,
			TargetPnL:      round2(pnl),
			TargetEquity:   round2(eq),
		})
	}
	return rows
}
