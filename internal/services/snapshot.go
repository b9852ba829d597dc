package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// snapshot is a point-in-time copy of the ledger.
type snapshot struct {
	txs     []core.Transaction
	cats    []core.Category
	version int64
}

// loadSnapshot reads transactions and categories concurrently. The version is
// read first so that a write racing the load yields a stale key, never a
// stale value under a fresh key.
func loadSnapshot(ctx context.Context, store ledger.Ledger) (snapshot, error) {
	var snap snapshot
	v, err := store.Version(ctx)
	if err != nil {
		return snap, fmt.Errorf("ledger version: %w", err)
	}
	snap.version = v

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := store.ListTransactions(gctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.txs = txs
		return nil
	})
	g.Go(func() error {
		cats, err := store.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		snap.cats = cats
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}
