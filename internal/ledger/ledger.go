// Package ledger declares the persistence ports of the cash-flow engine.
// Engine packages never import it; services hand them materialized slices.
package ledger

import (
	"context"
	"errors"

	"cashflow/internal/core"
)

var ErrConflict = errors.New("already exists")

type (
	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// CreateTransactions inserts all transactions or none.
		CreateTransactions(ctx context.Context, txs []core.Transaction) error
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		// DeleteCategory removes the category and clears the reference on
		// its transactions, which are kept. It returns how many were
		// cleared.
		DeleteCategory(ctx context.Context, id string) (int, error)
	}

	Ledger interface {
		TransactionStore
		CategoryStore
		// Import stores new categories and transactions atomically.
		Import(ctx context.Context, cats []core.Category, txs []core.Transaction) error
		// Version changes after every successful write.
		Version(ctx context.Context) (int64, error)
	}
)
