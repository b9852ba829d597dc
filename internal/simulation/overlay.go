// Package simulation layers what-if variables over a transaction collection.
package simulation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

type Kind string

const (
	Add    Kind = "add"
	Scale  Kind = "scale"
	Remove Kind = "remove"
)

var ErrInvalidVariable = errors.New("invalid simulation variable")

// Variable is one hypothetical change. Month 0 applies to every month of the
// year; empty CategoryID or Type match any.
type Variable struct {
	Kind        Kind                 `json:"kind"`
	CategoryID  string               `json:"categoryId,omitempty"`
	Type        core.TransactionType `json:"type,omitempty"`
	Origin      core.Origin          `json:"origin,omitempty"`
	Month       int                  `json:"month,omitempty"`
	Amount      core.Money           `json:"amount,omitempty"`
	Factor      decimal.Decimal      `json:"factor,omitempty"`
	Description string               `json:"description,omitempty"`
}

func (v Variable) Validate() error {
	if v.Month < 0 || v.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidVariable, v.Month)
	}
	if v.Type != "" && !v.Type.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidVariable, core.ErrInvalidType)
	}
	switch v.Kind {
	case Add:
		if !v.Type.Valid() {
			return fmt.Errorf("%w: add needs a type", ErrInvalidVariable)
		}
		if err := v.Amount.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidVariable, err)
		}
	case Scale:
		if !v.Factor.IsPositive() {
			return fmt.Errorf("%w: scale needs a positive factor, use remove to drop transactions", ErrInvalidVariable)
		}
	case Remove:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidVariable, v.Kind)
	}
	return nil
}

func (v Variable) matches(tx core.Transaction, year int) bool {
	if tx.Date.Year() != year {
		return false
	}
	if v.Month != 0 && tx.Date.Month() != v.Month {
		return false
	}
	if v.CategoryID != "" && tx.CategoryID != v.CategoryID {
		return false
	}
	if v.Type != "" && tx.Type != v.Type {
		return false
	}
	return true
}

// ApplyOverlay returns a new collection with vars applied in order. base is
// not modified. Added transactions are projected; scaled amounts that round
// to zero drop the transaction.
func ApplyOverlay(base []core.Transaction, vars []Variable, year int) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(base))
	copy(out, base)

	for i, v := range vars {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("variable %d: %w", i, err)
		}
		switch v.Kind {
		case Add:
			out = append(out, added(v, i, year)...)
		case Scale:
			next := out[:0:0]
			for _, tx := range out {
				if v.matches(tx, year) {
					tx.Amount = core.MoneyFromDecimal(tx.Amount.Decimal().Mul(v.Factor))
					if tx.Amount.Cents <= 0 {
						continue
					}
				}
				next = append(next, tx)
			}
			out = next
		case Remove:
			next := out[:0:0]
			for _, tx := range out {
				if !v.matches(tx, year) {
					next = append(next, tx)
				}
			}
			out = next
		}
	}
	return out, nil
}

func added(v Variable, idx, year int) []core.Transaction {
	months := []int{v.Month}
	if v.Month == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	origin := v.Origin
	if origin == "" {
		origin = core.Business
	}
	txs := make([]core.Transaction, 0, len(months))
	for _, m := range months {
		txs = append(txs, core.Transaction{
			ID:          fmt.Sprintf("sim-%d-%02d", idx, m),
			Date:        core.NewDate(year, m, 1),
			Amount:      v.Amount,
			Type:        v.Type,
			Status:      core.Projected,
			Origin:      origin,
			CategoryID:  v.CategoryID,
			Description: v.Description,
		})
	}
	return txs
}
