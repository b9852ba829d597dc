package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Ledger = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite ledger ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction, rolling back when it fails.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump ledger version: %w", err)
	}
	return nil
}

const transactionColumns = `id, date, amount_cents, type, status, payment_status, origin,
	category_id, description, installment_total, installment_index,
	installment_amount_cents, installment_equal_split, installment_parent_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		date                 string
		total, index         int
		instCents            int64
		equalSplit           bool
		parentID             string
		typ, status, payment string
		origin               string
	)
	err := s.Scan(&tx.ID, &date, &tx.Amount.Cents, &typ, &status, &payment, &origin,
		&tx.CategoryID, &tx.Description, &total, &index, &instCents, &equalSplit, &parentID)
	if err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.Date = d
	tx.Type = core.TransactionType(typ)
	tx.Status = core.Status(status)
	tx.PaymentStatus = core.PaymentStatus(payment)
	tx.Origin = core.Origin(origin)
	if total > 0 {
		tx.Installment = &core.Installment{
			Total:      total,
			Index:      index,
			Amount:     core.Money{Cents: instCents},
			EqualSplit: equalSplit,
			ParentID:   parentID,
		}
	}
	return tx, nil
}

func transactionArgs(tx core.Transaction) []any {
	var inst core.Installment
	if tx.Installment != nil {
		inst = *tx.Installment
	}
	return []any{
		tx.ID, tx.Date.String(), tx.Amount.Cents, string(tx.Type), string(tx.Status),
		string(tx.PaymentStatus), string(tx.Origin), tx.CategoryID, tx.Description,
		inst.Total, inst.Index, inst.Amount.Cents, inst.EqualSplit, inst.ParentID,
	}
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, txs []core.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, transactionArgs(t)...); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, mapConstraint(err))
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateTransactions(ctx context.Context, txs []core.Transaction) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransactions(ctx, tx, txs); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	args := transactionArgs(t)
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE transactions SET
			date = ?, amount_cents = ?, type = ?, status = ?, payment_status = ?, origin = ?,
			category_id = ?, description = ?, installment_total = ?, installment_index = ?,
			installment_amount_cents = ?, installment_equal_split = ?, installment_parent_id = ?
			WHERE id = ?`, append(args[1:], t.ID)...)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := expectRow(res, "transaction", t.ID); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if err := expectRow(res, "transaction", id); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, level, sublevel, color, fixed
		FROM categories ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c                           core.Category
			typ, level, sublevel, color string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &level, &sublevel, &color, &c.Fixed); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		c.Level = core.Level(level)
		c.Sublevel = core.Sublevel(sublevel)
		c.Color = color
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertCategory(ctx context.Context, tx *sql.Tx, c core.Category) error {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO categories (id, name, type, level, sublevel, color, fixed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), string(c.Level), string(c.Sublevel), c.Color, c.Fixed)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.ID, mapConstraint(err))
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE categories
			SET name = ?, type = ?, level = ?, sublevel = ?, color = ?, fixed = ?
			WHERE id = ?`,
			c.Name, string(c.Type), string(c.Level), string(c.Sublevel), c.Color, c.Fixed, c.ID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		if err := expectRow(res, "category", c.ID); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

// DeleteCategory clears category_id on linked transactions before removing
// the category; both happen in one transaction.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) (int, error) {
	var cleared int64
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE transactions SET category_id = '' WHERE category_id = ?`, id)
		if err != nil {
			return fmt.Errorf("clear category references: %w", err)
		}
		if cleared, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("clear category references: %w", err)
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if err := expectRow(res, "category", id); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Category deleted", "id", id, "cleared_transactions", cleared)
	return int(cleared), nil
}

func (r *SQLiteRepository) Import(ctx context.Context, cats []core.Category, txs []core.Transaction) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cats {
			if err := insertCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		if err := insertTransactions(ctx, tx, txs); err != nil {
			return err
		}
		return bumpVersion(ctx, tx)
	})
}

func (r *SQLiteRepository) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, `SELECT version FROM ledger_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read ledger version: %w", err)
	}
	return v, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	}
	return err
}
