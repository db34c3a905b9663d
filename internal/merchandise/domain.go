package merchandise

import (
	"errors"
	"time"

	"github.com/colorapp/merchstock/internal/ledger"
)

// Status tracks the entry lifecycle. Engine calls happen exactly at the
// Draft→Submitted and Submitted→Cancelled transitions.
type Status string

const (
	// StatusDraft marks an editable, not yet posted entry.
	StatusDraft Status = "DRAFT"
	// StatusSubmitted marks an entry whose ledger effect has been applied.
	StatusSubmitted Status = "SUBMITTED"
	// StatusCancelled marks an entry whose ledger effect has been reversed.
	StatusCancelled Status = "CANCELLED"
)

// EntryLine is one (item, quantity) line of a merchandise entry. ItemName is
// snapshotted at creation so submitted documents stay readable after catalog
// renames.
type EntryLine struct {
	ID       int64   `json:"id"`
	EntryID  int64   `json:"entry_id"`
	ItemID   int64   `json:"item_id"`
	ItemName string  `json:"item_name"`
	Qty      float64 `json:"qty"`
}

// Entry is the user-facing merchandise transaction document. Line items are
// immutable once the entry is submitted.
type Entry struct {
	ID                int64                  `json:"id"`
	Reference         string                 `json:"reference"`
	Type              ledger.TransactionType `json:"type"`
	SourceWarehouseID int64                  `json:"source_warehouse_id,omitempty"`
	TargetWarehouseID int64                  `json:"target_warehouse_id,omitempty"`
	Description       string                 `json:"description"`
	Status            Status                 `json:"status"`
	Lines             []EntryLine            `json:"lines"`
	CreatedBy         int64                  `json:"created_by"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	SubmittedAt       *time.Time             `json:"submitted_at,omitempty"`
	CancelledAt       *time.Time             `json:"cancelled_at,omitempty"`
}

// EntryInput describes a draft entry to create or replace.
type EntryInput struct {
	Type              ledger.TransactionType
	SourceWarehouseID int64
	TargetWarehouseID int64
	Description       string
	Lines             []LineInput
	ActorID           int64
}

// LineInput is one requested line item. Quantities are non-negative here;
// the ledger applies the sign based on type and warehouse role.
type LineInput struct {
	ItemID int64
	Qty    float64
}

// EntryFilter filters entry listings.
type EntryFilter struct {
	Status Status
	Type   ledger.TransactionType
	Page   int
	Limit  int
}

// ErrInvalidConfiguration indicates a missing required warehouse for the
// entry type, or identical source and target for a transfer.
var ErrInvalidConfiguration = errors.New("merchandise: invalid transaction configuration")

// ErrInvalidStatus indicates a lifecycle transition the state machine forbids.
var ErrInvalidStatus = errors.New("merchandise: invalid status for operation")

// ErrEntryNotFound indicates a missing entry.
var ErrEntryNotFound = errors.New("merchandise: entry not found")
