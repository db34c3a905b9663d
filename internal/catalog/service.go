package catalog

import (
	"context"
	"errors"

	"github.com/colorapp/merchstock/internal/shared"
)

// Service coordinates catalog operations.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListItems(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.ListItems(ctx, filters)
}

func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, errors.New("catalog: invalid item ID")
	}
	return s.repo.GetItem(ctx, id)
}

func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	if err := s.validateItem(item); err != nil {
		return Item{}, err
	}
	return s.repo.CreateItem(ctx, item)
}

func (s *Service) UpdateItem(ctx context.Context, id int64, item Item) error {
	if id <= 0 {
		return errors.New("catalog: invalid item ID")
	}
	if err := s.validateItem(item); err != nil {
		return err
	}
	return s.repo.UpdateItem(ctx, id, item)
}

func (s *Service) ListWarehouses(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.ListWarehouses(ctx, filters)
}

func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, errors.New("catalog: invalid warehouse ID")
	}
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if err := s.validateWarehouse(warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.CreateWarehouse(ctx, warehouse)
}

func (s *Service) UpdateWarehouse(ctx context.Context, id int64, warehouse Warehouse) error {
	if id <= 0 {
		return errors.New("catalog: invalid warehouse ID")
	}
	if err := s.validateWarehouse(warehouse); err != nil {
		return err
	}
	return s.repo.UpdateWarehouse(ctx, id, warehouse)
}

// ItemThreshold returns the minimum stock level configured for an item.
func (s *Service) ItemThreshold(ctx context.Context, itemID int64) (float64, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return item.MinimumStockLevel, nil
}

// WarehouseExists reports whether the warehouse is present in the catalog.
func (s *Service) WarehouseExists(ctx context.Context, warehouseID int64) error {
	_, err := s.repo.GetWarehouse(ctx, warehouseID)
	return err
}
