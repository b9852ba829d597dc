package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// Store is an in-process ledger. Slices preserve insertion order.
type Store struct {
	mu      sync.Mutex
	cats    []core.Category
	txs     []core.Transaction
	version int64
}

var _ ledger.Ledger = (*Store)(nil)

func New(cats []core.Category) *Store {
	s := &Store{}
	seen := map[string]bool{}
	for _, c := range cats {
		c = c.Normalize()
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		s.cats = append(s.cats, c)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one per line
// as "id;name;type;level[;sublevel]". Invalid lines are skipped.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		parts := strings.Split(line, ";")
		if len(parts) < 4 {
			continue
		}
		c := core.Category{
			ID:    strings.TrimSpace(parts[0]),
			Name:  strings.TrimSpace(parts[1]),
			Type:  core.TransactionType(strings.TrimSpace(parts[2])),
			Level: core.Level(strings.TrimSpace(parts[3])),
		}
		if len(parts) > 4 {
			c.Sublevel = core.Sublevel(strings.TrimSpace(parts[4]))
		}
		if c.Validate() != nil {
			continue
		}
		cats = append(cats, c)
	}
	return New(cats)
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.txIndex(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) CreateTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNewTransactions(txs); err != nil {
		return err
	}
	s.txs = append(s.txs, txs...)
	s.version++
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(tx.ID)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	s.txs[i] = tx
	s.version++
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	s.version++
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catIndex(c.ID) >= 0 {
		return fmt.Errorf("category %s: %w", c.ID, ledger.ErrConflict)
	}
	s.cats = append(s.cats, c)
	s.version++
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.catIndex(c.ID)
	if i < 0 {
		return fmt.Errorf("category %s: %w", c.ID, core.ErrNotFound)
	}
	s.cats[i] = c
	s.version++
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.catIndex(id)
	if i < 0 {
		return 0, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	s.cats = append(s.cats[:i], s.cats[i+1:]...)
	cleared := 0
	for j := range s.txs {
		if s.txs[j].CategoryID == id {
			s.txs[j].CategoryID = ""
			cleared++
		}
	}
	s.version++
	return cleared, nil
}

func (s *Store) Import(_ context.Context, cats []core.Category, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := make([]core.Category, len(cats))
	for i, c := range cats {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		if s.catIndex(c.ID) >= 0 {
			return fmt.Errorf("category %s: %w", c.ID, ledger.ErrConflict)
		}
		normalized[i] = c
	}
	if err := s.checkNewTransactions(txs); err != nil {
		return err
	}
	s.cats = append(s.cats, normalized...)
	s.txs = append(s.txs, txs...)
	s.version++
	return nil
}

func (s *Store) Version(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *Store) checkNewTransactions(txs []core.Transaction) error {
	ids := map[string]bool{}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		if tx.ID == "" || ids[tx.ID] || s.txIndex(tx.ID) >= 0 {
			return fmt.Errorf("transaction %q: %w", tx.ID, ledger.ErrConflict)
		}
		ids[tx.ID] = true
	}
	return nil
}

func (s *Store) txIndex(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) catIndex(id string) int {
	for i := range s.cats {
		if s.cats[i].ID == id {
			return i
		}
	}
	return -1
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
