package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/aggregate"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
	"cashflow/internal/metrics"
	"cashflow/internal/simulation"
)

var ErrInvalidFilters = errors.New("invalid filters")

// MonthsView is the monthly income/expense table of one year.
type MonthsView struct {
	Year    int                    `json:"year"`
	Months  [12]core.MonthlyTotals `json:"months"`
	Income  core.Split             `json:"income"`
	Expense core.Split             `json:"expense"`
}

// CategoriesView groups one transaction type by category and month.
type CategoriesView struct {
	Year    int                   `json:"year"`
	Type    core.TransactionType  `json:"type"`
	Grouped core.CategoryMonths   `json:"grouped"`
	Totals  []core.CategoryAmount `json:"totals"`
}

// DashboardService serves the read side: metrics, monthly and per-category
// aggregates, and simulations. Results are memoized per ledger version.
type DashboardService struct {
	store  ledger.Ledger
	logger *log.Logger

	metricsCache    *cache.LRUCache[metrics.Result]
	monthsCache     *cache.LRUCache[MonthsView]
	categoriesCache *cache.LRUCache[CategoriesView]

	Now func() time.Time
}

func NewDashboardService(store ledger.Ledger, cacheSize int, ttl time.Duration) *DashboardService {
	return &DashboardService{
		store:           store,
		logger:          log.Component(log.ComponentDashboard),
		metricsCache:    cache.NewLRUCache[metrics.Result](cacheSize, ttl),
		monthsCache:     cache.NewLRUCache[MonthsView](cacheSize, ttl),
		categoriesCache: cache.NewLRUCache[CategoriesView](cacheSize, ttl),
		Now:             time.Now,
	}
}

// Caches exposes the memo caches for periodic cleanup.
func (s *DashboardService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.metricsCache, s.monthsCache, s.categoriesCache}
}

// Invalidate drops every memoized result.
func (s *DashboardService) Invalidate() {
	n := s.metricsCache.Purge() + s.monthsCache.Purge() + s.categoriesCache.Purge()
	if n > 0 {
		s.logger.Debug("Dashboard cache invalidated", "entries", n)
	}
}

// NormalizeFilters fills defaults (current year, all origins, all focus) and
// rejects unknown values.
func (s *DashboardService) NormalizeFilters(f core.Filters, focus core.FocusMode) (core.Filters, core.FocusMode, error) {
	if f.Year == 0 {
		f.Year = s.Now().Year()
	}
	if f.Year < 1900 || f.Year > 2999 {
		return f, focus, fmt.Errorf("%w: year %d", ErrInvalidFilters, f.Year)
	}
	if f.Origin == "" {
		f.Origin = core.OriginAll
	}
	if !f.Origin.Valid() {
		return f, focus, fmt.Errorf("%w: origin %q", ErrInvalidFilters, f.Origin)
	}
	if focus == "" {
		focus = core.FocusAll
	}
	if !focus.Valid() {
		return f, focus, fmt.Errorf("%w: focus %q", ErrInvalidFilters, focus)
	}
	return f, focus, nil
}

func (s *DashboardService) engine() metrics.Engine {
	return metrics.Engine{Now: s.Now}
}

// Metrics computes the monthly series and KPIs. The key includes the current
// month because KPIs depend on the clock.
func (s *DashboardService) Metrics(ctx context.Context, f core.Filters, focus core.FocusMode) (metrics.Result, error) {
	f, focus, err := s.NormalizeFilters(f, focus)
	if err != nil {
		return metrics.Result{}, err
	}
	version, err := s.store.Version(ctx)
	if err != nil {
		return metrics.Result{}, fmt.Errorf("ledger version: %w", err)
	}
	now := s.Now()
	key := func(v int64) string {
		return fmt.Sprintf("metrics|%d|%t|%s|%s|%d-%02d|v%d", f.Year, f.ShowProjected, f.Origin, focus, now.Year(), now.Month(), v)
	}
	if res, ok := s.metricsCache.Get(key(version)); ok {
		return res, nil
	}

	snap, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return metrics.Result{}, err
	}
	res := s.engine().Compute(snap.txs, snap.cats, f, focus)
	s.metricsCache.Set(key(snap.version), res)
	s.logger.DebugContext(ctx, "Metrics computed",
		log.FieldYear, f.Year,
		"focus", focus,
		"transactions", len(snap.txs))
	return res, nil
}

func (s *DashboardService) Months(ctx context.Context, f core.Filters) (MonthsView, error) {
	f, _, err := s.NormalizeFilters(f, core.FocusAll)
	if err != nil {
		return MonthsView{}, err
	}
	version, err := s.store.Version(ctx)
	if err != nil {
		return MonthsView{}, fmt.Errorf("ledger version: %w", err)
	}
	key := fmt.Sprintf("months|%d|%s|v%d", f.Year, f.Origin, version)
	if v, ok := s.monthsCache.Get(key); ok {
		return v, nil
	}

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return MonthsView{}, fmt.Errorf("list transactions: %w", err)
	}
	view := MonthsView{Year: f.Year, Months: aggregate.ByMonth(txs, f.Year, f.Origin)}
	view.Income, view.Expense = aggregate.Totals(view.Months)
	s.monthsCache.Set(key, view)
	return view, nil
}

func (s *DashboardService) Categories(ctx context.Context, f core.Filters, t core.TransactionType) (CategoriesView, error) {
	f, _, err := s.NormalizeFilters(f, core.FocusAll)
	if err != nil {
		return CategoriesView{}, err
	}
	if !t.Valid() {
		return CategoriesView{}, fmt.Errorf("%w: %w", ErrInvalidFilters, core.ErrInvalidType)
	}
	version, err := s.store.Version(ctx)
	if err != nil {
		return CategoriesView{}, fmt.Errorf("ledger version: %w", err)
	}
	key := func(v int64) string {
		return fmt.Sprintf("categories|%d|%t|%s|%s|v%d", f.Year, f.ShowProjected, f.Origin, t, v)
	}
	if v, ok := s.categoriesCache.Get(key(version)); ok {
		return v, nil
	}

	snap, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return CategoriesView{}, err
	}
	grouped := aggregate.ByCategory(snap.txs, snap.cats, f.Year, f.Origin, t)
	view := CategoriesView{
		Year:    f.Year,
		Type:    t,
		Grouped: grouped,
		Totals:  aggregate.CategoryTotals(grouped, f.ShowProjected),
	}
	s.categoriesCache.Set(key(snap.version), view)
	return view, nil
}

// Simulate computes metrics over the ledger with vars applied. Results are
// not cached and nothing is written.
func (s *DashboardService) Simulate(ctx context.Context, f core.Filters, focus core.FocusMode, vars []simulation.Variable) (metrics.Result, error) {
	f, focus, err := s.NormalizeFilters(f, focus)
	if err != nil {
		return metrics.Result{}, err
	}
	snap, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return metrics.Result{}, err
	}
	txs, err := simulation.ApplyOverlay(snap.txs, vars, f.Year)
	if err != nil {
		return metrics.Result{}, err
	}
	s.logger.DebugContext(ctx, "Simulation computed", "variables", len(vars), log.FieldYear, f.Year)
	return s.engine().Compute(txs, snap.cats, f, focus), nil
}
