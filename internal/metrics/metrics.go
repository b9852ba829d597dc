// Package metrics derives the monthly series and scalar KPIs of the
// dashboard from a transaction collection.
//
// Month indexes are 0-based (January = 0). The current month is always taken
// from the engine clock, never from the filtered year. Runway is bounded to
// the filtered calendar year: a balance that stays positive reports the
// months left until December instead of a rolling forecast.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/aggregate"
	"cashflow/internal/classify"
	"cashflow/internal/core"
)

// BurnWindow is the number of calendar months before the current one that
// feed the burn rate.
const BurnWindow = 3

// Result is the output of Compute.
type Result struct {
	MonthlyData [12]core.MonthlyMetric `json:"monthlyData"`
	KPI         core.KPISet            `json:"kpi"`
}

// Engine computes metrics against a clock. The zero value uses time.Now.
type Engine struct {
	Now func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Compute builds the monthly series for filters.Year and the KPI set. Only
// transactions whose category level matches focus are considered.
func (e Engine) Compute(txs []core.Transaction, cats []core.Category, filters core.Filters, focus core.FocusMode) Result {
	now := e.now()
	scoped := classify.ByFocus(txs, classify.NewIndex(cats), focus)

	monthly := Monthly(aggregate.ByMonth(scoped, filters.Year, filters.Origin), filters.ShowProjected)
	cur := int(now.Month()) - 1

	var res Result
	res.MonthlyData = monthly

	current := monthly[cur]
	var lastNet int64
	if cur > 0 {
		lastNet = monthly[cur-1].Net.Cents
	}

	res.KPI = core.KPISet{
		Runway:         Runway(monthly, cur),
		BurnRate:       BurnRate(trailingExpenses(scoped, filters, now)),
		MonthlyRevenue: current.Income,
		MonthlyExpense: current.Expense,
		LastMonthDelta: Delta(current.Net.Cents, lastNet),
		NetMargin:      NetMargin(current.Net.Cents, current.Income.Cents),
		CashOnHand:     current.Accumulated,
		NetCashFlow:    current.Net,
	}
	return res
}

// Monthly turns aggregated totals into the net/accumulated series. The
// accumulated balance starts from zero in January.
func Monthly(months [12]core.MonthlyTotals, showProjected bool) [12]core.MonthlyMetric {
	var out [12]core.MonthlyMetric
	var acc core.Money
	for i, m := range months {
		income := m.Income.Visible(showProjected)
		expense := m.Expense.Visible(showProjected)
		net := income.Sub(expense)
		acc = acc.Add(net)
		out[i] = core.MonthlyMetric{
			Month:       i + 1,
			Income:      income,
			Expense:     expense,
			Net:         net,
			Accumulated: acc,
		}
	}
	return out
}

// trailingExpenses returns the visible expense of each of the BurnWindow
// calendar months before now, crossing into the previous year when needed.
func trailingExpenses(txs []core.Transaction, filters core.Filters, now time.Time) []int64 {
	byYear := make(map[int][12]core.MonthlyTotals)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]int64, 0, BurnWindow)
	for k := 1; k <= BurnWindow; k++ {
		d := first.AddDate(0, -k, 0)
		months, ok := byYear[d.Year()]
		if !ok {
			months = aggregate.ByMonth(txs, d.Year(), filters.Origin)
			byYear[d.Year()] = months
		}
		out = append(out, months[d.Month()-1].Expense.Visible(filters.ShowProjected).Cents)
	}
	return out
}

// BurnRate averages the nonzero expenses, in cents. Months without spend are
// left out of both sum and count; with no qualifying month the rate is zero.
func BurnRate(expenses []int64) core.Money {
	var sum, n int64
	for _, e := range expenses {
		if e == 0 {
			continue
		}
		sum += e
		n++
	}
	if n == 0 {
		return core.Money{}
	}
	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)).Round(0)
	return core.Money{Cents: avg.IntPart()}
}

// Runway counts the months from cur until the accumulated balance first turns
// negative, adding the fraction of the losing month the previous balance
// covers. It never goes below zero and is capped at the months left in the
// year.
func Runway(monthly [12]core.MonthlyMetric, cur int) float64 {
	if cur < 0 || cur > 11 {
		return 0
	}
	for k := cur; k < 12; k++ {
		if monthly[k].Accumulated.Cents >= 0 {
			continue
		}
		var prev int64
		if k > 0 {
			prev = monthly[k-1].Accumulated.Cents
		}
		loss := monthly[k].Net.Abs().Cents

		r := decimal.NewFromInt(int64(k - cur))
		if loss > 0 {
			r = r.Add(decimal.NewFromInt(prev).Div(decimal.NewFromInt(loss)))
		}
		if r.IsNegative() {
			return 0
		}
		return r.InexactFloat64()
	}
	return float64(12 - cur)
}

// Delta is the month-over-month change of net as a percentage of the
// previous month's magnitude. A zero previous month yields zero.
func Delta(currentNet, lastNet int64) float64 {
	if lastNet == 0 {
		return 0
	}
	last := decimal.NewFromInt(lastNet)
	return decimal.NewFromInt(currentNet).Sub(last).
		Div(last.Abs()).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// NetMargin is net over income as a percentage, zero without income.
func NetMargin(net, income int64) float64 {
	if income == 0 {
		return 0
	}
	return decimal.NewFromInt(net).
		Div(decimal.NewFromInt(income)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}
