// Package classify resolves a transaction to the level and sublevel of its
// category.
package classify

import "cashflow/internal/core"

// Index looks categories up by id.
type Index map[string]core.Category

func NewIndex(cats []core.Category) Index {
	idx := make(Index, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx
}

// Classify returns the level view of tx. A missing or stale category
// reference classifies as company with no sublevel, so dangling transactions
// show up under the company view.
func Classify(tx core.Transaction, idx Index) core.Classification {
	c, ok := idx[tx.CategoryID]
	if tx.CategoryID == "" || !ok {
		return core.Classification{Level: core.LevelEmpresa}
	}
	out := core.Classification{Level: c.Level, Color: c.Color}
	if c.Level == core.LevelPersonal {
		out.Sublevel = c.Sublevel
	}
	return out
}

// MatchesFocus reports whether a classification belongs to the focus view.
func MatchesFocus(c core.Classification, focus core.FocusMode) bool {
	switch focus {
	case core.FocusCompany:
		return c.Level == core.LevelEmpresa
	case core.FocusPersonal:
		return c.Level == core.LevelPersonal
	default:
		return true
	}
}

// ByFocus keeps the transactions whose classification matches focus.
func ByFocus(txs []core.Transaction, idx Index, focus core.FocusMode) []core.Transaction {
	if focus == "" || focus == core.FocusAll {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if MatchesFocus(Classify(tx, idx), focus) {
			out = append(out, tx)
		}
	}
	return out
}
