package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/aggregate"
	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/fingerprint"
	"cashflow/internal/importer"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

var ErrNothingToImport = errors.New("nothing to import")

// Publisher announces committed imports. *amqp.Client implements it.
type Publisher interface {
	PublishImportCommitted(ctx context.Context, msg *amqp.ImportCommittedMessage) error
}

// CommitResult reports what an import commit wrote.
type CommitResult struct {
	Inserted      int   `json:"inserted"`
	Duplicates    int   `json:"duplicates"`
	NewCategories int   `json:"newCategories"`
	Years         []int `json:"years"`
}

// ImportService previews spreadsheet imports against the ledger and commits
// the rows that are not already there.
type ImportService struct {
	store     ledger.Ledger
	publisher Publisher
	cache     Invalidator
	opts      importer.Options
	logger    *log.Logger

	Now   func() time.Time
	newID func() string
}

// NewImportService wires the service. publisher and cache may be nil.
func NewImportService(store ledger.Ledger, publisher Publisher, cache Invalidator, opts importer.Options) *ImportService {
	return &ImportService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		opts:      opts,
		logger:    log.Component(log.ComponentImport),
		Now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Preview parses a file buffer and flags rows already in the ledger. Parse
// problems are reported in the result, not as an error.
func (s *ImportService) Preview(ctx context.Context, data []byte, filename string) (importer.Result, error) {
	res := importer.ParseBuffer(data, filename, s.Now())
	s.logger.DebugContext(ctx, "Parsed import buffer",
		log.FieldOperation, log.OpParse,
		"filename", filename,
		"bytes", len(data),
		"rows", len(res.Rows),
		log.FieldSuccess, res.Success)
	return s.reconcile(ctx, res)
}

// PreviewMatrix is Preview for sources that already produce cells, such as a
// Sheets range.
func (s *ImportService) PreviewMatrix(ctx context.Context, m importer.Matrix) (importer.Result, error) {
	return s.reconcile(ctx, importer.ParseMatrix(m, s.Now()))
}

func (s *ImportService) reconcile(ctx context.Context, res importer.Result) (importer.Result, error) {
	if !res.Success {
		return res, nil
	}
	snap, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return importer.Result{}, err
	}
	res.Rows = reconcileRows(res.Rows, snap, s.opts)
	res.Stats = importer.Summarize(res.Rows, snap.cats)
	s.logger.InfoContext(ctx, "Import preview ready",
		"rows", res.Stats.TotalRows,
		"duplicates", res.Stats.PotentialDuplicates,
		"new_categories", res.Stats.NewCategories)
	return res, nil
}

// reconcileRows fingerprints the existing ledger once, limited to the years
// the rows cover, and flags duplicates.
func reconcileRows(rows []core.ImportedRow, snap snapshot, opts importer.Options) []core.ImportedRow {
	existing := fingerprint.FromTransactions(snap.txs, aggregate.Names(snap.cats), importer.Years(rows))
	return importer.Reconcile(rows, existing, opts)
}

// Commit stores the rows that are not duplicates of the current ledger.
// Rows are fingerprinted and reconciled again so that a stale preview cannot
// insert twice. Missing categories are created by (name, type) as company
// categories. Categories and transactions are written atomically.
func (s *ImportService) Commit(ctx context.Context, rows []core.ImportedRow, source string) (CommitResult, error) {
	if len(rows) == 0 {
		return CommitResult{}, ErrNothingToImport
	}
	clean := make([]core.ImportedRow, len(rows))
	for i, r := range rows {
		if err := validateRow(r); err != nil {
			return CommitResult{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		r.Fingerprint = fingerprint.OfRow(r)
		r.IsDuplicate = false
		clean[i] = r
	}

	snap, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return CommitResult{}, err
	}
	reconciled := reconcileRows(clean, snap, s.opts)
	accepted := importer.Accepted(reconciled)
	result := CommitResult{Duplicates: len(reconciled) - len(accepted), Years: sortedYears(accepted)}
	if len(accepted) == 0 {
		s.logger.InfoContext(ctx, "Import skipped, every row is a duplicate", "rows", len(rows))
		return result, nil
	}

	ids := make(map[string]string, len(snap.cats))
	for _, c := range snap.cats {
		ids[importer.CategoryKey(c.Name, c.Type)] = c.ID
	}
	var newCats []core.Category
	txs := make([]core.Transaction, 0, len(accepted))
	for _, r := range accepted {
		key := importer.CategoryKey(r.CategoryName, r.Type)
		id, ok := ids[key]
		if !ok {
			c := core.Category{ID: s.newID(), Name: r.CategoryName, Type: r.Type, Level: core.LevelEmpresa}.Normalize()
			newCats = append(newCats, c)
			ids[key] = c.ID
			id = c.ID
		}
		txs = append(txs, core.Transaction{
			ID:          s.newID(),
			Date:        r.Date,
			Amount:      r.Amount,
			Type:        r.Type,
			Status:      r.Status,
			Origin:      r.Origin,
			CategoryID:  id,
			Description: r.CategoryName,
		})
	}

	if err := s.store.Import(ctx, newCats, txs); err != nil {
		return CommitResult{}, fmt.Errorf("import: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}
	result.Inserted = len(txs)
	result.NewCategories = len(newCats)

	s.logger.InfoContext(ctx, "Import committed",
		log.FieldOperation, log.OpImport,
		"source", source,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"new_categories", result.NewCategories)

	if s.publisher != nil {
		msg := &amqp.ImportCommittedMessage{
			Source:        source,
			Rows:          result.Inserted,
			Duplicates:    result.Duplicates,
			NewCategories: result.NewCategories,
			Years:         result.Years,
			Timestamp:     s.Now(),
		}
		if err := s.publisher.PublishImportCommitted(ctx, msg); err != nil {
			// The import is stored; the event is best effort.
			s.logger.ErrorContext(ctx, "Failed to publish import committed event", log.FieldError, err)
		}
	}
	return result, nil
}

func validateRow(r core.ImportedRow) error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return core.ErrInvalidType
	}
	if !r.Status.Valid() {
		return core.ErrInvalidStatus
	}
	if !r.Origin.Valid() {
		return core.ErrInvalidOrigin
	}
	if r.CategoryName == "" {
		return core.ErrEmptyName
	}
	return nil
}

func sortedYears(rows []core.ImportedRow) []int {
	set := importer.Years(rows)
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
