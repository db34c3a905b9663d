package merchandise

import (
	"fmt"

	"github.com/colorapp/merchstock/internal/ledger"
)

// validateConfiguration enforces the warehouse rules per entry type: Issue
// needs a source, Receipt needs a target, Transfer needs both and they must
// differ. Runs before any catalog or ledger access.
func validateConfiguration(input EntryInput) error {
	switch input.Type {
	case ledger.TransactionTypeIssue:
		if input.SourceWarehouseID == 0 {
			return fmt.Errorf("%w: source warehouse is required for issue", ErrInvalidConfiguration)
		}
	case ledger.TransactionTypeReceipt:
		if input.TargetWarehouseID == 0 {
			return fmt.Errorf("%w: target warehouse is required for receipt", ErrInvalidConfiguration)
		}
	case ledger.TransactionTypeTransfer:
		if input.SourceWarehouseID == 0 {
			return fmt.Errorf("%w: source warehouse is required for transfer", ErrInvalidConfiguration)
		}
		if input.TargetWarehouseID == 0 {
			return fmt.Errorf("%w: target warehouse is required for transfer", ErrInvalidConfiguration)
		}
		if input.SourceWarehouseID == input.TargetWarehouseID {
			return fmt.Errorf("%w: source and target warehouse cannot be the same", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown entry type %q", ErrInvalidConfiguration, input.Type)
	}

	if len(input.Lines) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidConfiguration)
	}
	for i, line := range input.Lines {
		if line.ItemID == 0 {
			return fmt.Errorf("%w: line %d: merchandise item is required", ErrInvalidConfiguration, i+1)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be greater than zero", ErrInvalidConfiguration, i+1)
		}
	}
	return nil
}
