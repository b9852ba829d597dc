// Package fingerprint derives the content hash used to recognise the same
// logical transaction across repeated imports.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"cashflow/internal/core"
)

// Fingerprint hashes date, amount, category and type. The date is reduced to
// YYYY-MM-DD, the amount is rendered with two decimals and the category name
// is trimmed and lowercased.
func Fingerprint(date core.Date, amount core.Money, categoryName string, t core.TransactionType) string {
	parts := []string{
		date.String(),
		amount.String(),
		strings.ToLower(strings.TrimSpace(categoryName)),
		string(t),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum[:])
}

// OfTransaction fingerprints a stored transaction whose category has already
// been resolved to categoryName.
func OfTransaction(tx core.Transaction, categoryName string) string {
	return Fingerprint(tx.Date, tx.Amount, categoryName, tx.Type)
}

// OfRow fingerprints an imported row.
func OfRow(r core.ImportedRow) string {
	return Fingerprint(r.Date, r.Amount, r.CategoryName, r.Type)
}

// Set is a snapshot of known fingerprints.
type Set map[string]struct{}

func NewSet(fps ...string) Set {
	s := make(Set, len(fps))
	for _, fp := range fps {
		s.Add(fp)
	}
	return s
}

func (s Set) Has(fp string) bool {
	_, ok := s[fp]
	return ok
}

func (s Set) Add(fp string) {
	s[fp] = struct{}{}
}

// FromTransactions fingerprints every transaction dated in one of years,
// resolving category names through names (id -> name). Transactions whose
// category cannot be resolved fall back to their description, matching how
// they are grouped for display. An empty years set selects all transactions.
func FromTransactions(txs []core.Transaction, names map[string]string, years map[int]bool) Set {
	s := make(Set, len(txs))
	for _, tx := range txs {
		if len(years) > 0 && !years[tx.Date.Year()] {
			continue
		}
		name, ok := names[tx.CategoryID]
		if !ok || tx.CategoryID == "" {
			name = tx.Description
		}
		s.Add(OfTransaction(tx, name))
	}
	return s
}
