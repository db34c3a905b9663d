package merchandise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/colorapp/merchstock/internal/catalog"
	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/internal/shared"
)

// LedgerPort is the slice of the stock ledger engine the transaction layer
// drives.
type LedgerPort interface {
	Apply(ctx context.Context, req ledger.ApplyRequest) ([]ledger.Movement, error)
}

// CatalogPort resolves items and warehouses referenced by entries.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
	WarehouseExists(ctx context.Context, warehouseID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the merchandise entry lifecycle.
type Service struct {
	repo        Repository
	ledger      LedgerPort
	catalog     CatalogPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	locks       *shared.KeyLocker
	now         func() time.Time
	newRef      func() string
}

// NewService builds Service.
func NewService(repo Repository, ledgerPort LedgerPort, catalogPort CatalogPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{
		repo:        repo,
		ledger:      ledgerPort,
		catalog:     catalogPort,
		audit:       audit,
		idempotency: idem,
		locks:       shared.NewKeyLocker(),
		now:         time.Now,
		newRef:      func() string { return uuid.NewString() },
	}
}

func entryLockKey(id int64) string {
	return fmt.Sprintf("entry:%d:lock", id)
}

// Create validates and stores a draft entry. No ledger effect.
func (s *Service) Create(ctx context.Context, input EntryInput) (Entry, error) {
	if err := validateConfiguration(input); err != nil {
		return Entry{}, err
	}
	lines, err := s.resolveLines(ctx, input)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Reference:         s.newRef(),
		Type:              input.Type,
		SourceWarehouseID: input.SourceWarehouseID,
		TargetWarehouseID: input.TargetWarehouseID,
		Description:       input.Description,
		Status:            StatusDraft,
		Lines:             lines,
		CreatedBy:         input.ActorID,
	}
	return s.repo.Create(ctx, entry)
}

// Update replaces a draft entry's header and lines. Submitted entries are
// immutable.
func (s *Service) Update(ctx context.Context, id int64, input EntryInput) (Entry, error) {
	if err := validateConfiguration(input); err != nil {
		return Entry{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if current.Status != StatusDraft {
		return Entry{}, fmt.Errorf("%w: %s entry", shared.ErrImmutable, current.Status)
	}
	lines, err := s.resolveLines(ctx, input)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:                id,
		Type:              input.Type,
		SourceWarehouseID: input.SourceWarehouseID,
		TargetWarehouseID: input.TargetWarehouseID,
		Description:       input.Description,
		Lines:             lines,
	}
	if err := s.repo.ReplaceDraft(ctx, entry); err != nil {
		return Entry{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// List lists entries.
func (s *Service) List(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	return s.repo.List(ctx, filter)
}

// Submit applies the entry's forward ledger effect and moves it to
// Submitted. Availability is verified for every line before any movement is
// written, so a short line aborts the whole submission with no partial
// writes. Submit and Cancel of one entry serialise on the same lock, so a
// cancellation can never observe a submission whose ledger effect is still
// in flight.
func (s *Service) Submit(ctx context.Context, id int64, actorID int64) (Entry, error) {
	s.locks.Lock(entryLockKey(id))
	defer s.locks.Unlock(entryLockKey(id))

	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status != StatusDraft {
		return Entry{}, fmt.Errorf("%w: entry is %s", ErrInvalidStatus, entry.Status)
	}
	if err := validateConfiguration(inputFromEntry(entry)); err != nil {
		return Entry{}, err
	}

	key := fmt.Sprintf("merchandise:submit:%s", entry.Reference)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "merchandise"); err != nil {
			return Entry{}, err
		}
		insertedKey = true
	}
	rollbackKey := func() {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
	}

	now := s.now().UTC()
	ok, err := s.repo.TransitionStatus(ctx, id, StatusDraft, StatusSubmitted, now)
	if err != nil {
		rollbackKey()
		return Entry{}, err
	}
	if !ok {
		rollbackKey()
		return Entry{}, fmt.Errorf("%w: entry already processed", ErrInvalidStatus)
	}

	req := applyRequest(entry, actorID, false)
	if _, err := s.ledger.Apply(ctx, req); err != nil {
		// Ledger effect failed before any durable write; hand the entry
		// back to the draft state so it can be fixed and resubmitted.
		if _, revertErr := s.repo.TransitionStatus(ctx, id, StatusSubmitted, StatusDraft, now); revertErr != nil {
			return Entry{}, errors.Join(err, revertErr)
		}
		rollbackKey()
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "merchandise:submit",
			Entity:   "merchandise_entry",
			EntityID: entry.Reference,
			Meta:     map[string]any{"type": string(entry.Type), "lines": len(entry.Lines)},
		})
	}
	return s.repo.Get(ctx, id)
}

// Cancel reverses every movement the submission wrote, replaying each with
// the quantity negated and the cancellation flag set. Re-cancelling is
// rejected by the status compare-and-set, so a balance is never
// double-reversed.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Entry, error) {
	s.locks.Lock(entryLockKey(id))
	defer s.locks.Unlock(entryLockKey(id))

	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status != StatusSubmitted {
		return Entry{}, fmt.Errorf("%w: entry is %s", ErrInvalidStatus, entry.Status)
	}

	key := fmt.Sprintf("merchandise:cancel:%s", entry.Reference)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "merchandise"); err != nil {
			return Entry{}, err
		}
		insertedKey = true
	}
	rollbackKey := func() {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
	}

	now := s.now().UTC()
	ok, err := s.repo.TransitionStatus(ctx, id, StatusSubmitted, StatusCancelled, now)
	if err != nil {
		rollbackKey()
		return Entry{}, err
	}
	if !ok {
		rollbackKey()
		return Entry{}, fmt.Errorf("%w: entry already processed", ErrInvalidStatus)
	}

	req := applyRequest(entry, actorID, true)
	if _, err := s.ledger.Apply(ctx, req); err != nil {
		if _, revertErr := s.repo.TransitionStatus(ctx, id, StatusCancelled, StatusSubmitted, now); revertErr != nil {
			return Entry{}, errors.Join(err, revertErr)
		}
		rollbackKey()
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "merchandise:cancel",
			Entity:   "merchandise_entry",
			EntityID: entry.Reference,
			Meta:     map[string]any{"type": string(entry.Type), "lines": len(entry.Lines)},
		})
	}
	return s.repo.Get(ctx, id)
}

// resolveLines verifies catalog references and snapshots item names.
func (s *Service) resolveLines(ctx context.Context, input EntryInput) ([]EntryLine, error) {
	if input.SourceWarehouseID != 0 {
		if err := s.catalog.WarehouseExists(ctx, input.SourceWarehouseID); err != nil {
			return nil, err
		}
	}
	if input.TargetWarehouseID != 0 {
		if err := s.catalog.WarehouseExists(ctx, input.TargetWarehouseID); err != nil {
			return nil, err
		}
	}
	lines := make([]EntryLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		item, err := s.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, EntryLine{ItemID: item.ID, ItemName: item.Name, Qty: line.Qty})
	}
	return lines, nil
}

// applyRequest builds the ledger movements of one submission or reversal.
// Receipt credits the target, Issue debits the source, Transfer does both as
// a linked pair sharing the entry reference.
func applyRequest(entry Entry, actorID int64, cancel bool) ledger.ApplyRequest {
	multiplier := 1.0
	if cancel {
		multiplier = -1.0
	}
	req := ledger.ApplyRequest{
		Reference:    entry.Reference,
		ActorID:      actorID,
		Cancellation: cancel,
	}
	for _, line := range entry.Lines {
		switch entry.Type {
		case ledger.TransactionTypeReceipt:
			req.Movements = append(req.Movements, ledger.MovementInput{
				ItemID:         line.ItemID,
				WarehouseID:    entry.TargetWarehouseID,
				Qty:            line.Qty * multiplier,
				Type:           entry.Type,
				IsCancellation: cancel,
			})
		case ledger.TransactionTypeIssue:
			req.Movements = append(req.Movements, ledger.MovementInput{
				ItemID:         line.ItemID,
				WarehouseID:    entry.SourceWarehouseID,
				Qty:            -line.Qty * multiplier,
				Type:           entry.Type,
				IsCancellation: cancel,
			})
		case ledger.TransactionTypeTransfer:
			req.Movements = append(req.Movements,
				ledger.MovementInput{
					ItemID:         line.ItemID,
					WarehouseID:    entry.SourceWarehouseID,
					Qty:            -line.Qty * multiplier,
					Type:           entry.Type,
					IsCancellation: cancel,
				},
				ledger.MovementInput{
					ItemID:         line.ItemID,
					WarehouseID:    entry.TargetWarehouseID,
					Qty:            line.Qty * multiplier,
					Type:           entry.Type,
					IsCancellation: cancel,
				},
			)
		}
		if !cancel && (entry.Type == ledger.TransactionTypeIssue || entry.Type == ledger.TransactionTypeTransfer) {
			req.Checks = append(req.Checks, ledger.AvailabilityCheck{
				ItemID:      line.ItemID,
				WarehouseID: entry.SourceWarehouseID,
				Qty:         line.Qty,
			})
		}
	}
	return req
}

func inputFromEntry(entry Entry) EntryInput {
	input := EntryInput{
		Type:              entry.Type,
		SourceWarehouseID: entry.SourceWarehouseID,
		TargetWarehouseID: entry.TargetWarehouseID,
		Description:       entry.Description,
	}
	for _, line := range entry.Lines {
		input.Lines = append(input.Lines, LineInput{ItemID: line.ItemID, Qty: line.Qty})
	}
	return input
}
