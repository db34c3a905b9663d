package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorapp/merchstock/internal/shared"
)

type memoryRepo struct {
	items      map[int64]Item
	warehouses map[int64]Warehouse
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item), warehouses: make(map[int64]Warehouse)}
}

func (r *memoryRepo) ListItems(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	var result []Item
	for _, item := range r.items {
		result = append(result, item)
	}
	return result, len(result), nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (Item, error) {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, id int64, item Item) error {
	if _, ok := r.items[id]; !ok {
		return ErrItemNotFound
	}
	item.ID = id
	r.items[id] = item
	return nil
}

func (r *memoryRepo) ListWarehouses(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	var result []Warehouse
	for _, wh := range r.warehouses {
		result = append(result, wh)
	}
	return result, len(result), nil
}

func (r *memoryRepo) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	wh, ok := r.warehouses[id]
	if !ok {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return wh, nil
}

func (r *memoryRepo) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	r.nextID++
	warehouse.ID = r.nextID
	r.warehouses[warehouse.ID] = warehouse
	return warehouse, nil
}

func (r *memoryRepo) UpdateWarehouse(ctx context.Context, id int64, warehouse Warehouse) error {
	if _, ok := r.warehouses[id]; !ok {
		return ErrWarehouseNotFound
	}
	warehouse.ID = id
	r.warehouses[id] = warehouse
	return nil
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, Item{Name: "Widget"})
	require.Error(t, err)

	_, err = svc.CreateItem(ctx, Item{Code: "W-1"})
	require.Error(t, err)

	_, err = svc.CreateItem(ctx, Item{Code: "W-1", Name: "Widget", MinimumStockLevel: -1})
	require.Error(t, err)

	item, err := svc.CreateItem(ctx, Item{Code: "W-1", Name: "Widget", MinimumStockLevel: 5, IsActive: true})
	require.NoError(t, err)
	require.NotZero(t, item.ID)
}

func TestItemThreshold(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: "W-1", Name: "Widget", MinimumStockLevel: 7})
	require.NoError(t, err)

	threshold, err := svc.ItemThreshold(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 7.0, threshold, 0.0001)

	_, err = svc.ItemThreshold(ctx, 999)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestWarehouseExists(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	wh, err := svc.CreateWarehouse(ctx, Warehouse{Code: "WH-1", Name: "Main"})
	require.NoError(t, err)

	require.NoError(t, svc.WarehouseExists(ctx, wh.ID))
	require.ErrorIs(t, svc.WarehouseExists(ctx, 999), ErrWarehouseNotFound)
}

func TestGetRejectsInvalidID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.GetItem(ctx, 0)
	require.Error(t, err)
	_, err = svc.GetWarehouse(ctx, -1)
	require.Error(t, err)
}
