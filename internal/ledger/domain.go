package ledger

import (
	"errors"
	"time"
)

// TransactionType enumerates supported merchandise movements.
type TransactionType string

const (
	// TransactionTypeIssue represents an outbound movement from a source warehouse.
	TransactionTypeIssue TransactionType = "ISSUE"
	// TransactionTypeReceipt represents an inbound movement into a target warehouse.
	TransactionTypeReceipt TransactionType = "RECEIPT"
	// TransactionTypeTransfer marks the paired debit/credit of a warehouse transfer.
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// Movement is one append-only stock ledger row. Rows are immutable once
// created; a cancellation is a new row with the negated quantity, never a
// mutation of history.
type Movement struct {
	ID             int64           `json:"id"`
	ItemID         int64           `json:"item_id"`
	WarehouseID    int64           `json:"warehouse_id"`
	Qty            float64         `json:"qty"`
	BalanceAfter   float64         `json:"balance_after"`
	Type           TransactionType `json:"type"`
	ReferenceID    string          `json:"reference_id"`
	IsCancellation bool            `json:"is_cancellation"`
	PostedAt       time.Time       `json:"posted_at"`
}

// Balance is the denormalized per-(warehouse, item) stock cache. It always
// equals the most recent balance_after in the ledger for the same key.
type Balance struct {
	ItemID      int64     `json:"item_id"`
	WarehouseID int64     `json:"warehouse_id"`
	Qty         float64   `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BalanceKey identifies one (item, warehouse) pair.
type BalanceKey struct {
	ItemID      int64
	WarehouseID int64
}

// MovementInput describes one movement to record. Qty is signed; the caller
// applies the sign based on transaction type and warehouse role.
type MovementInput struct {
	ItemID         int64
	WarehouseID    int64
	Qty            float64
	Type           TransactionType
	IsCancellation bool
}

// AvailabilityCheck asks the engine to verify stock before applying movements.
type AvailabilityCheck struct {
	ItemID      int64
	WarehouseID int64
	Qty         float64
}

// ApplyRequest groups the movements of one transaction application. Checks
// run under the same key locks as the movements, so a passed check cannot be
// invalidated by a concurrent writer before the movements commit.
type ApplyRequest struct {
	Reference    string
	ActorID      int64
	Cancellation bool
	Checks       []AvailabilityCheck
	Movements    []MovementInput
}

// LowStockAlert carries the data handed to the notifier when a balance drops
// below the item's minimum stock level.
type LowStockAlert struct {
	ItemID         int64
	WarehouseID    int64
	CurrentBalance float64
	Threshold      float64
	PostedAt       time.Time
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	ItemID      int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrInsufficientStock indicates the requested quantity exceeds the current balance.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrInvalidQuantity indicates a zero or wrongly signed quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be non zero")

// ErrDataIntegrity indicates a balance went negative despite the availability
// protocol. The application is rolled back and must be reconciled manually.
var ErrDataIntegrity = errors.New("ledger: balance went negative, manual reconciliation required")
