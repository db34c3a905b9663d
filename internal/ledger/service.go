package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colorapp/merchstock/internal/shared"
)

// RepositoryPort abstracts repository usage for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, itemID, warehouseID int64) (Balance, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListBalanceKeys(ctx context.Context) ([]BalanceKey, error)
}

// CatalogPort supplies item threshold lookups and warehouse existence checks.
type CatalogPort interface {
	ItemThreshold(ctx context.Context, itemID int64) (float64, error)
	WarehouseExists(ctx context.Context, warehouseID int64) error
}

// Notifier receives low-stock conditions raised by the engine.
type Notifier interface {
	Notify(ctx context.Context, alert LowStockAlert) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records ledger counters.
type MetricsPort interface {
	ObserveMovement(txType string, cancellation bool)
	ObserveLowStockAlert()
}

// Service is the stock ledger engine. It owns the movement history and the
// derived balance cache; callers never edit either directly.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	notifier Notifier
	audit    AuditPort
	metrics  MetricsPort
	locks    *shared.KeyLocker
	cache    *BalanceCache
	now      func() time.Time
}

// NewService builds the engine.
func NewService(repo RepositoryPort, catalog CatalogPort, notifier Notifier, audit AuditPort, metrics MetricsPort, cache *BalanceCache) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
		locks:    shared.NewKeyLocker(),
		cache:    cache,
		now:      time.Now,
	}
}

// ValidateAvailability fails with ErrInsufficientStock when the requested
// quantity exceeds the current balance for (item, warehouse). The transaction
// layer calls this for Issue and the source side of Transfer before any
// movement is recorded.
func (s *Service) ValidateAvailability(ctx context.Context, itemID, warehouseID int64, requested float64) error {
	if requested <= 0 {
		return ErrInvalidQuantity
	}
	balance, err := s.repo.GetBalance(ctx, itemID, warehouseID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return err
	}
	if requested > balance.Qty {
		return fmt.Errorf("%w: item %d in warehouse %d has %g, requested %g",
			ErrInsufficientStock, itemID, warehouseID, balance.Qty, requested)
	}
	return nil
}

// RecordMovement appends a single movement and updates the balance cache.
// It never fails for insufficient stock; insufficiency is checked by the
// caller through ValidateAvailability.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput, reference string, actorID int64) (Movement, error) {
	movements, err := s.Apply(ctx, ApplyRequest{
		Reference:    reference,
		ActorID:      actorID,
		Cancellation: input.IsCancellation,
		Movements:    []MovementInput{input},
	})
	if err != nil {
		return Movement{}, err
	}
	return movements[0], nil
}

// Apply records every movement of one transaction application atomically:
// either all movements commit or none do. Availability checks run under the
// same per-key locks as the movements, so two concurrent issues against the
// same stock cannot both pass a check the balance only covers once.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) ([]Movement, error) {
	if len(req.Movements) == 0 {
		return nil, errors.New("ledger: no movements to apply")
	}
	thresholds := make(map[int64]float64, len(req.Movements))
	for _, input := range req.Movements {
		if input.Qty == 0 {
			return nil, ErrInvalidQuantity
		}
		if input.ItemID == 0 || input.WarehouseID == 0 {
			return nil, errors.New("ledger: item and warehouse required")
		}
		if _, ok := thresholds[input.ItemID]; !ok {
			threshold, err := s.catalog.ItemThreshold(ctx, input.ItemID)
			if err != nil {
				return nil, err
			}
			thresholds[input.ItemID] = threshold
		}
		if err := s.catalog.WarehouseExists(ctx, input.WarehouseID); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(req.Movements)+len(req.Checks))
	for _, input := range req.Movements {
		keys = append(keys, shared.StockLockKey(input.ItemID, input.WarehouseID))
	}
	for _, check := range req.Checks {
		keys = append(keys, shared.StockLockKey(check.ItemID, check.WarehouseID))
	}
	release := s.locks.LockAll(keys)
	defer release()

	// Checks sum per (item, warehouse) pair, so two lines drawing on the
	// same stock are validated against their combined quantity.
	checkTotals := make(map[BalanceKey]float64, len(req.Checks))
	checkOrder := make([]BalanceKey, 0, len(req.Checks))
	for _, check := range req.Checks {
		key := BalanceKey{ItemID: check.ItemID, WarehouseID: check.WarehouseID}
		if _, ok := checkTotals[key]; !ok {
			checkOrder = append(checkOrder, key)
		}
		checkTotals[key] += check.Qty
	}
	for _, key := range checkOrder {
		if err := s.ValidateAvailability(ctx, key.ItemID, key.WarehouseID, checkTotals[key]); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	var movements []Movement
	var alerts []LowStockAlert

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements = movements[:0]
		alerts = alerts[:0]
		for _, input := range req.Movements {
			balance, err := tx.GetBalanceForUpdate(ctx, input.ItemID, input.WarehouseID)
			if err != nil && !errors.Is(err, ErrBalanceNotFound) {
				return err
			}
			if errors.Is(err, ErrBalanceNotFound) {
				balance = Balance{ItemID: input.ItemID, WarehouseID: input.WarehouseID}
			}
			newQty := balance.Qty + input.Qty
			if newQty < 0 && !input.IsCancellation {
				return fmt.Errorf("%w: item %d in warehouse %d would reach %g",
					ErrDataIntegrity, input.ItemID, input.WarehouseID, newQty)
			}
			movement := Movement{
				ItemID:         input.ItemID,
				WarehouseID:    input.WarehouseID,
				Qty:            input.Qty,
				BalanceAfter:   newQty,
				Type:           input.Type,
				ReferenceID:    req.Reference,
				IsCancellation: input.IsCancellation,
				PostedAt:       now,
			}
			id, err := tx.InsertMovement(ctx, movement)
			if err != nil {
				return err
			}
			movement.ID = id
			balance.Qty = newQty
			if err := tx.UpsertBalance(ctx, balance); err != nil {
				return err
			}
			movements = append(movements, movement)
			if newQty < thresholds[input.ItemID] {
				alerts = append(alerts, LowStockAlert{
					ItemID:         input.ItemID,
					WarehouseID:    input.WarehouseID,
					CurrentBalance: newQty,
					Threshold:      thresholds[input.ItemID],
					PostedAt:       now,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		for _, movement := range movements {
			s.cache.Invalidate(ctx, movement.ItemID, movement.WarehouseID)
		}
	}
	for _, movement := range movements {
		if s.metrics != nil {
			s.metrics.ObserveMovement(string(movement.Type), movement.IsCancellation)
		}
	}
	if s.notifier != nil {
		for _, alert := range alerts {
			if s.metrics != nil {
				s.metrics.ObserveLowStockAlert()
			}
			_ = s.notifier.Notify(ctx, alert)
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID,
			Action:   auditAction(req.Cancellation),
			Entity:   "stock_movement",
			EntityID: req.Reference,
			Meta: map[string]any{
				"movements": len(movements),
			},
		})
	}
	return movements, nil
}

// Balance returns the cached balance for (item, warehouse). A missing row
// reads as zero.
func (s *Service) Balance(ctx context.Context, itemID, warehouseID int64) (Balance, error) {
	if itemID == 0 || warehouseID == 0 {
		return Balance{}, errors.New("ledger: item and warehouse required")
	}
	if s.cache != nil {
		return s.cache.Fetch(ctx, itemID, warehouseID, func(ctx context.Context) (Balance, error) {
			return s.loadBalance(ctx, itemID, warehouseID)
		})
	}
	return s.loadBalance(ctx, itemID, warehouseID)
}

func (s *Service) loadBalance(ctx context.Context, itemID, warehouseID int64) (Balance, error) {
	balance, err := s.repo.GetBalance(ctx, itemID, warehouseID)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{ItemID: itemID, WarehouseID: warehouseID}, nil
	}
	return balance, err
}

// Movements lists ledger rows for one (item, warehouse) pair.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ItemID == 0 || filter.WarehouseID == 0 {
		return nil, errors.New("ledger: item and warehouse required")
	}
	return s.repo.ListMovements(ctx, filter)
}

func auditAction(cancellation bool) string {
	if cancellation {
		return "ledger:cancel"
	}
	return "ledger:apply"
}
