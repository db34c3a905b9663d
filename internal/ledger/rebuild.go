package ledger

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/colorapp/merchstock/internal/shared"
)

const rebuildConcurrency = 4

// RebuildBalances recomputes every balance row from ledger aggregation. The
// balance cache is derived state; this is the rebuild procedure for it, run
// from the nightly worker or after manual reconciliation.
func (s *Service) RebuildBalances(ctx context.Context) (int, error) {
	keys, err := s.repo.ListBalanceKeys(ctx)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			lockKey := shared.StockLockKey(key.ItemID, key.WarehouseID)
			s.locks.Lock(lockKey)
			defer s.locks.Unlock(lockKey)
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				sum, err := tx.SumMovements(ctx, key.ItemID, key.WarehouseID)
				if err != nil {
					return err
				}
				return tx.UpsertBalance(ctx, Balance{ItemID: key.ItemID, WarehouseID: key.WarehouseID, Qty: sum})
			})
			if err != nil {
				return err
			}
			if s.cache != nil {
				s.cache.Invalidate(ctx, key.ItemID, key.WarehouseID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(keys), nil
}
