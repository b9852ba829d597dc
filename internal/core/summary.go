package core

// Split keeps confirmed and forecast amounts apart so callers can toggle
// projected visibility without recomputing.
type Split struct {
	Real      Money `json:"real"`
	Projected Money `json:"projected"`
}

// Total returns real plus projected.
func (s Split) Total() Money {
	return s.Real.Add(s.Projected)
}

// Visible returns the total when projected amounts are shown, else real only.
func (s Split) Visible(showProjected bool) Money {
	if showProjected {
		return s.Total()
	}
	return s.Real
}

// Add accumulates amount into the bucket named by status.
func (s *Split) Add(status Status, amount Money) {
	if status == Real {
		s.Real = s.Real.Add(amount)
		return
	}
	s.Projected = s.Projected.Add(amount)
}

// MonthlyTotals is one month of income and expense.
type MonthlyTotals struct {
	Month   int   `json:"month"` // 1-12
	Income  Split `json:"income"`
	Expense Split `json:"expense"`
}

// Cell is one (category, month) aggregate. Status is real if any
// contributing transaction is real.
type Cell struct {
	Amount Money  `json:"amount"`
	Status Status `json:"status"`
	Split  Split  `json:"split"`
}

// CategoryMonths maps category group key to month (1-12) to cell.
type CategoryMonths map[string]map[int]Cell

// MonthlyMetric is derived per month and never persisted.
type MonthlyMetric struct {
	Month       int   `json:"month"`
	Income      Money `json:"income"`
	Expense     Money `json:"expense"`
	Net         Money `json:"net"`
	Accumulated Money `json:"accumulated"`
}

// KPISet holds the scalar dashboard indicators.
type KPISet struct {
	Runway         float64 `json:"runway"`
	BurnRate       Money   `json:"burnRate"`
	MonthlyRevenue Money   `json:"monthlyRevenue"`
	MonthlyExpense Money   `json:"monthlyExpense"`
	LastMonthDelta float64 `json:"lastMonthDelta"`
	NetMargin      float64 `json:"netMargin"`
	CashOnHand     Money   `json:"cashOnHand"`
	NetCashFlow    Money   `json:"netCashFlow"`
}

// Filters selects the transactions a dashboard view is computed over.
type Filters struct {
	Year          int          `json:"year"`
	ShowProjected bool         `json:"showProjected"`
	Origin        OriginFilter `json:"origin"`
}

// Classification is the level view of a transaction's category.
type Classification struct {
	Level    Level    `json:"level"`
	Sublevel Sublevel `json:"sublevel,omitempty"`
	Color    string   `json:"color,omitempty"`
}

// ImportedRow is a candidate transaction produced by a spreadsheet import.
// It lives only for one import session.
type ImportedRow struct {
	Fingerprint  string          `json:"fingerprint"`
	Date         Date            `json:"date"`
	Amount       Money           `json:"amount"`
	CategoryName string          `json:"categoryName"`
	Type         TransactionType `json:"type"`
	Status       Status          `json:"status"`
	Origin       Origin          `json:"origin"`
	IsDuplicate  bool            `json:"isDuplicate"`
}

// ImportStats summarizes an import preview.
type ImportStats struct {
	TotalRows            int               `json:"totalRows"`
	NewCategories        int               `json:"newCategories"`
	PotentialDuplicates  int               `json:"potentialDuplicates"`
	EstimatedTotalAmount Money             `json:"estimatedTotalAmount"`
	Suggestions          map[string]string `json:"suggestions,omitempty"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}
