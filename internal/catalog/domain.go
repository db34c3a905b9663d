package catalog

import (
	"errors"
	"time"
)

// Item represents a merchandise item in the catalog.
type Item struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	MinimumStockLevel float64   `json:"minimum_stock_level"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Warehouse represents a merchandise warehouse. ContactEmail receives
// low-stock alerts for the warehouse.
type Warehouse struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	ContactEmail string    `json:"contact_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrItemNotFound indicates the referenced item is absent from the catalog.
var ErrItemNotFound = errors.New("catalog: item not found")

// ErrWarehouseNotFound indicates the referenced warehouse is absent.
var ErrWarehouseNotFound = errors.New("catalog: warehouse not found")
