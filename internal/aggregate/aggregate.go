// Package aggregate groups transactions into per-month and per-category
// totals, keeping real and projected amounts in separate accumulators.
//
// All functions are pure: inputs are never mutated and no state is kept
// between calls.
package aggregate

import (
	"sort"

	"cashflow/internal/core"
)

// Filter returns the transactions dated in the calendar year and passing the
// origin filter.
func Filter(txs []core.Transaction, year int, origin core.OriginFilter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Year() != year || !origin.Matches(tx.Origin) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// ByMonth totals income and expense for each month of year.
func ByMonth(txs []core.Transaction, year int, origin core.OriginFilter) [12]core.MonthlyTotals {
	var months [12]core.MonthlyTotals
	for i := range months {
		months[i].Month = i + 1
	}
	for _, tx := range Filter(txs, year, origin) {
		m := &months[tx.Date.Month()-1]
		switch tx.Type {
		case core.Income:
			m.Income.Add(tx.Status, tx.Amount)
		case core.Expense:
			m.Expense.Add(tx.Status, tx.Amount)
		}
	}
	return months
}

// Totals sums the twelve months into yearly income and expense.
func Totals(months [12]core.MonthlyTotals) (income, expense core.Split) {
	for _, m := range months {
		income.Real = income.Real.Add(m.Income.Real)
		income.Projected = income.Projected.Add(m.Income.Projected)
		expense.Real = expense.Real.Add(m.Expense.Real)
		expense.Projected = expense.Projected.Add(m.Expense.Projected)
	}
	return income, expense
}

// Visible picks the amount a view should show.
func Visible(s core.Split, showProjected bool) core.Money {
	return s.Visible(showProjected)
}

// Names indexes category names by id.
func Names(cats []core.Category) map[string]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}

// GroupKey resolves the grouping name of a transaction: the linked category
// name, else the description, else core.Uncategorized.
func GroupKey(tx core.Transaction, names map[string]string) string {
	if tx.CategoryID != "" {
		if name, ok := names[tx.CategoryID]; ok && name != "" {
			return name
		}
	}
	if tx.Description != "" {
		return tx.Description
	}
	return core.Uncategorized
}

// ByCategory groups the year's transactions of type t by category name and
// month. A cell's amount is the sum of its contributions and its status is
// real as soon as one contribution is real.
func ByCategory(txs []core.Transaction, cats []core.Category, year int, origin core.OriginFilter, t core.TransactionType) core.CategoryMonths {
	names := Names(cats)
	out := make(core.CategoryMonths)
	for _, tx := range Filter(txs, year, origin) {
		if tx.Type != t {
			continue
		}
		key := GroupKey(tx, names)
		row, ok := out[key]
		if !ok {
			row = make(map[int]core.Cell)
			out[key] = row
		}
		month := tx.Date.Month()
		cell, seen := row[month]
		cell.Amount = cell.Amount.Add(tx.Amount)
		cell.Split.Add(tx.Status, tx.Amount)
		if !seen || tx.Status == core.Real {
			cell.Status = tx.Status
		}
		row[month] = cell
	}
	return out
}

// CategoryTotals flattens ByCategory output into one amount per category for
// the visible view, ordered by descending amount then name.
func CategoryTotals(grouped core.CategoryMonths, showProjected bool) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(grouped))
	for name, months := range grouped {
		var total core.Money
		for _, c := range months {
			total = total.Add(c.Split.Visible(showProjected))
		}
		if total.Cents == 0 {
			continue
		}
		out = append(out, core.CategoryAmount{Name: name, Amount: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
