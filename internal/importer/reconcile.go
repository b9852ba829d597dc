package importer

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"cashflow/internal/core"
	"cashflow/internal/fingerprint"
)

// Options tunes reconciliation.
type Options struct {
	// WithinBatch also flags rows repeating an earlier row of the same
	// batch. Off by default: only the existing snapshot is consulted.
	WithinBatch bool
}

// Reconcile flags rows whose fingerprint is in existing. existing must be a
// single snapshot taken before the call; rows are returned as a new slice.
func Reconcile(rows []core.ImportedRow, existing fingerprint.Set, opts Options) []core.ImportedRow {
	out := make([]core.ImportedRow, len(rows))
	seen := fingerprint.NewSet()
	for i, r := range rows {
		if r.Fingerprint == "" {
			r.Fingerprint = fingerprint.OfRow(r)
		}
		r.IsDuplicate = existing.Has(r.Fingerprint)
		if opts.WithinBatch {
			if seen.Has(r.Fingerprint) {
				r.IsDuplicate = true
			}
			seen.Add(r.Fingerprint)
		}
		out[i] = r
	}
	return out
}

// Accepted returns the rows to commit.
func Accepted(rows []core.ImportedRow) []core.ImportedRow {
	out := make([]core.ImportedRow, 0, len(rows))
	for _, r := range rows {
		if !r.IsDuplicate {
			out = append(out, r)
		}
	}
	return out
}

// Years lists the distinct years covered by rows.
func Years(rows []core.ImportedRow) map[int]bool {
	years := make(map[int]bool)
	for _, r := range rows {
		years[r.Date.Year()] = true
	}
	return years
}

// CategoryKey identifies a category by normalized name and type. A name may
// exist once per type.
func CategoryKey(name string, t core.TransactionType) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(t)
}

// Summarize computes preview statistics. The estimated total only counts rows
// that would be committed. Suggestions map each new category name to the
// closest known category of the same type, when one is close enough.
func Summarize(rows []core.ImportedRow, known []core.Category) core.ImportStats {
	knownKeys := make(map[string]bool, len(known))
	for _, c := range known {
		knownKeys[CategoryKey(c.Name, c.Type)] = true
	}

	stats := core.ImportStats{TotalRows: len(rows)}
	newCats := map[string]bool{}
	for _, r := range rows {
		if r.IsDuplicate {
			stats.PotentialDuplicates++
		} else {
			stats.EstimatedTotalAmount = stats.EstimatedTotalAmount.Add(r.Amount)
		}
		key := CategoryKey(r.CategoryName, r.Type)
		if knownKeys[key] || newCats[key] {
			continue
		}
		newCats[key] = true
		stats.NewCategories++
		if s, ok := Suggest(r.CategoryName, r.Type, known); ok {
			if stats.Suggestions == nil {
				stats.Suggestions = map[string]string{}
			}
			stats.Suggestions[r.CategoryName] = s
		}
	}
	return stats
}

// Suggest returns the known category of type t whose name is nearest to
// name by edit distance, if within a third of the name's length.
func Suggest(name string, t core.TransactionType, known []core.Category) (string, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return "", false
	}
	maxDist := len([]rune(target)) / 3
	if maxDist < 1 {
		maxDist = 1
	}
	best, bestDist := "", maxDist+1
	for _, c := range known {
		if c.Type != t {
			continue
		}
		d := levenshtein.ComputeDistance(target, strings.ToLower(strings.TrimSpace(c.Name)))
		if d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	return best, best != ""
}
