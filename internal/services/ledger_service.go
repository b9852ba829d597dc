package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

// MaxInstallments bounds a single installment plan.
const MaxInstallments = 120

var ErrInvalidInstallments = errors.New("invalid installment count")

// Invalidator drops memoized results after the ledger changed.
type Invalidator interface {
	Invalidate()
}

// LedgerService validates and stores transactions and categories.
type LedgerService struct {
	store  ledger.Ledger
	cache  Invalidator
	logger *log.Logger
	newID  func() string
}

func NewLedgerService(store ledger.Ledger, cache Invalidator) *LedgerService {
	return &LedgerService{
		store:  store,
		cache:  cache,
		logger: log.Component(log.ComponentLedger),
		newID:  uuid.NewString,
	}
}

func (s *LedgerService) changed() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func (s *LedgerService) Transactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// CreateTransaction assigns an id when missing and stores tx.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validation failed: %w", err)
	}
	if err := s.store.CreateTransactions(ctx, []core.Transaction{tx}); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldType, tx.Type)
	return tx, nil
}

// CreateInstallments expands base into count monthly transactions starting
// at base.Date. With equalSplit the amount is divided in cents and the
// remainder lands on the last installment; otherwise every installment
// carries the full amount. All installments point at the first one.
func (s *LedgerService) CreateInstallments(ctx context.Context, base core.Transaction, count int, equalSplit bool) ([]core.Transaction, error) {
	if count < 1 || count > MaxInstallments {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstallments, count)
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	txs, err := Installments(base, count, equalSplit, s.newID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("create installments: %w", err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Installments created",
		log.FieldOperation, log.OpCreate,
		log.FieldTransactionID, txs[0].ID,
		"count", count,
		"equal_split", equalSplit)
	return txs, nil
}

// Installments builds the transactions of an installment plan without
// storing them.
func Installments(base core.Transaction, count int, equalSplit bool, newID func() string) ([]core.Transaction, error) {
	per := base.Amount.Cents
	if equalSplit {
		per = base.Amount.Cents / int64(count)
		if per <= 0 {
			return nil, fmt.Errorf("%w: %s cannot be split in %d", core.ErrInvalidAmount, base.Amount, count)
		}
	}

	txs := make([]core.Transaction, count)
	for i := range txs {
		tx := base
		tx.ID = newID()
		tx.Date = AddMonths(base.Date, i)
		tx.Amount = core.Money{Cents: per}
		if equalSplit && i == count-1 {
			tx.Amount.Cents = base.Amount.Cents - per*int64(count-1)
		}
		tx.Installment = &core.Installment{
			Total:      count,
			Index:      i + 1,
			Amount:     tx.Amount,
			EqualSplit: equalSplit,
			ParentID:   txs[0].ID,
		}
		if i == 0 {
			tx.Installment.ParentID = tx.ID
		}
		txs[i] = tx
	}
	return txs, nil
}

// AddMonths moves d by n calendar months, clamping the day to the length of
// the target month.
func AddMonths(d core.Date, n int) core.Date {
	first := time.Date(d.Year(), time.Month(d.Month())+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	s.changed()
	return nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldOperation, log.OpDelete, log.FieldTransactionID, id)
	return nil
}

func (s *LedgerService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c = c.Normalize()
	if c.ID == "" {
		c.ID = s.newID()
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("validation failed: %w", err)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Category created",
		log.FieldOperation, log.OpCreate,
		log.FieldCategory, c.Name,
		log.FieldType, c.Type)
	return c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) error {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	s.changed()
	return nil
}

// DeleteCategory removes a category and reports how many transactions lost
// their reference.
func (s *LedgerService) DeleteCategory(ctx context.Context, id string) (int, error) {
	cleared, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete category %s: %w", id, err)
	}
	s.changed()
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldOperation, log.OpDelete,
		"category_id", id,
		"cleared", cleared)
	return cleared, nil
}
