package merchandise

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colorapp/merchstock/internal/catalog"
	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries map[int64]Entry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]Entry)}
}

func (r *memoryRepo) Create(ctx context.Context, entry Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	for i := range entry.Lines {
		entry.Lines[i].EntryID = entry.ID
	}
	r.entries[entry.ID] = entry
	return entry, nil
}

func (r *memoryRepo) ReplaceDraft(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[entry.ID]
	if !ok {
		return ErrEntryNotFound
	}
	if current.Status != StatusDraft {
		return ErrInvalidStatus
	}
	current.Type = entry.Type
	current.SourceWarehouseID = entry.SourceWarehouseID
	current.TargetWarehouseID = entry.TargetWarehouseID
	current.Description = entry.Description
	current.Lines = entry.Lines
	r.entries[entry.ID] = current
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r *memoryRepo) List(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Entry
	for _, entry := range r.entries {
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		result = append(result, entry)
	}
	return result, len(result), nil
}

func (r *memoryRepo) TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.Status != from {
		return false, nil
	}
	entry.Status = to
	switch to {
	case StatusSubmitted:
		entry.SubmittedAt = &at
	case StatusCancelled:
		entry.CancelledAt = &at
	case StatusDraft:
		entry.SubmittedAt = nil
	}
	r.entries[id] = entry
	return true, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	requests []ledger.ApplyRequest
	err      error

	// started signals that an Apply is in flight; gate holds it there
	// until the test releases it.
	started chan struct{}
	gate    chan struct{}
}

func (l *fakeLedger) Apply(ctx context.Context, req ledger.ApplyRequest) ([]ledger.Movement, error) {
	if l.started != nil {
		l.started <- struct{}{}
	}
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.requests = append(l.requests, req)
	movements := make([]ledger.Movement, len(req.Movements))
	for i, input := range req.Movements {
		movements[i] = ledger.Movement{
			ID:             int64(i + 1),
			ItemID:         input.ItemID,
			WarehouseID:    input.WarehouseID,
			Qty:            input.Qty,
			Type:           input.Type,
			ReferenceID:    req.Reference,
			IsCancellation: input.IsCancellation,
		}
	}
	return movements, nil
}

type fakeCatalog struct{}

func (fakeCatalog) GetItem(ctx context.Context, id int64) (catalog.Item, error) {
	if id > 100 {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return catalog.Item{ID: id, Name: "Widget", IsActive: true}, nil
}

func (fakeCatalog) WarehouseExists(ctx context.Context, warehouseID int64) error {
	if warehouseID > 100 {
		return catalog.ErrWarehouseNotFound
	}
	return nil
}

func newTestService() (*Service, *memoryRepo, *fakeLedger) {
	repo := newMemoryRepo()
	lg := &fakeLedger{}
	svc := NewService(repo, lg, fakeCatalog{}, nil, nil)
	return svc, repo, lg
}

func issueInput() EntryInput {
	return EntryInput{
		Type:              ledger.TransactionTypeIssue,
		SourceWarehouseID: 1,
		Lines:             []LineInput{{ItemID: 1, Qty: 5}},
		ActorID:           7,
	}
}

func TestCreateDraft(t *testing.T) {
	svc, _, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, entry.Status)
	require.NotEmpty(t, entry.Reference)
	require.Equal(t, "Widget", entry.Lines[0].ItemName)
	require.Empty(t, lg.requests, "creating a draft must not touch the ledger")
}

func TestCreateRejectsMissingWarehouse(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	input := issueInput()
	input.SourceWarehouseID = 0
	_, err := svc.Create(ctx, input)
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	input = EntryInput{Type: ledger.TransactionTypeReceipt, Lines: []LineInput{{ItemID: 1, Qty: 5}}}
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCreateRejectsSameWarehouseTransfer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, EntryInput{
		Type:              ledger.TransactionTypeTransfer,
		SourceWarehouseID: 1,
		TargetWarehouseID: 1,
		Lines:             []LineInput{{ItemID: 1, Qty: 5}},
	})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	input := issueInput()
	input.Lines = []LineInput{{ItemID: 999, Qty: 5}}
	_, err := svc.Create(ctx, input)
	require.ErrorIs(t, err, catalog.ErrItemNotFound)

	input = issueInput()
	input.SourceWarehouseID = 999
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, catalog.ErrWarehouseNotFound)
}

func TestSubmitAppliesLedgerEffect(t *testing.T) {
	svc, _, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	require.Len(t, lg.requests, 1)
	req := lg.requests[0]
	require.Equal(t, entry.Reference, req.Reference)
	require.False(t, req.Cancellation)
	require.Len(t, req.Movements, 1)
	require.InDelta(t, -5.0, req.Movements[0].Qty, 0.0001)
	require.Len(t, req.Checks, 1)
	require.InDelta(t, 5.0, req.Checks[0].Qty, 0.0001)
}

func TestSubmitTransferBuildsPairedMovements(t *testing.T) {
	svc, _, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, EntryInput{
		Type:              ledger.TransactionTypeTransfer,
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Lines:             []LineInput{{ItemID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)

	req := lg.requests[0]
	require.Len(t, req.Movements, 2)
	require.InDelta(t, -5.0, req.Movements[0].Qty, 0.0001)
	require.Equal(t, int64(1), req.Movements[0].WarehouseID)
	require.InDelta(t, 5.0, req.Movements[1].Qty, 0.0001)
	require.Equal(t, int64(2), req.Movements[1].WarehouseID)
	require.Len(t, req.Checks, 1, "only the source side needs availability")
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, entry.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSubmitRevertsOnLedgerFailure(t *testing.T) {
	svc, repo, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)

	lg.err = ledger.ErrInsufficientStock
	_, err = svc.Submit(ctx, entry.ID, 7)
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	current, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, current.Status, "failed submit hands the entry back to draft")
	require.Nil(t, current.SubmittedAt, "revert clears the failed attempt's timestamp")

	// A fixed draft can be resubmitted.
	lg.err = nil
	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)
}

func TestCancelWaitsForInFlightSubmit(t *testing.T) {
	svc, repo, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)

	// Hold the submit's ledger apply open, then fail it. A concurrent
	// cancel must not slip in and reverse movements that never landed.
	lg.started = make(chan struct{}, 1)
	lg.gate = make(chan struct{})
	lg.err = ledger.ErrDataIntegrity

	submitErr := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, entry.ID, 7)
		submitErr <- err
	}()
	<-lg.started

	cancelErr := make(chan error, 1)
	go func() {
		_, err := svc.Cancel(ctx, entry.ID, 7)
		cancelErr <- err
	}()

	close(lg.gate)
	require.ErrorIs(t, <-submitErr, ledger.ErrDataIntegrity)
	require.ErrorIs(t, <-cancelErr, ErrInvalidStatus)

	current, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, current.Status)
	require.Empty(t, lg.requests, "no reversal may be written for a submission that never landed")
}

func TestCancelReversesMovements(t *testing.T) {
	svc, _, lg := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, entry.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	require.Len(t, lg.requests, 2)
	rev := lg.requests[1]
	require.True(t, rev.Cancellation)
	require.Equal(t, entry.Reference, rev.Reference)
	require.Len(t, rev.Movements, 1)
	require.InDelta(t, 5.0, rev.Movements[0].Qty, 0.0001, "issue reversal credits the source back")
	require.True(t, rev.Movements[0].IsCancellation)
	require.Empty(t, rev.Checks, "reversals skip availability checks")
}

func TestCancelIsRejectedTwice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, entry.ID, 7)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, entry.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCancelRequiresSubmitted(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, entry.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateDraftOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	entry, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)

	input := issueInput()
	input.Lines = []LineInput{{ItemID: 2, Qty: 9}}
	updated, err := svc.Update(ctx, entry.ID, input)
	require.NoError(t, err)
	require.InDelta(t, 9.0, updated.Lines[0].Qty, 0.0001)

	_, err = svc.Submit(ctx, entry.ID, 7)
	require.NoError(t, err)

	_, err = svc.Update(ctx, entry.ID, input)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestValidateConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		input EntryInput
		err   error
	}{
		{
			name: "issue without source",
			input: EntryInput{
				Type:  ledger.TransactionTypeIssue,
				Lines: []LineInput{{ItemID: 1, Qty: 1}},
			},
			err: ErrInvalidConfiguration,
		},
		{
			name: "receipt without target",
			input: EntryInput{
				Type:  ledger.TransactionTypeReceipt,
				Lines: []LineInput{{ItemID: 1, Qty: 1}},
			},
			err: ErrInvalidConfiguration,
		},
		{
			name: "transfer missing target",
			input: EntryInput{
				Type:              ledger.TransactionTypeTransfer,
				SourceWarehouseID: 1,
				Lines:             []LineInput{{ItemID: 1, Qty: 1}},
			},
			err: ErrInvalidConfiguration,
		},
		{
			name: "no lines",
			input: EntryInput{
				Type:              ledger.TransactionTypeIssue,
				SourceWarehouseID: 1,
			},
			err: ErrInvalidConfiguration,
		},
		{
			name: "zero quantity line",
			input: EntryInput{
				Type:              ledger.TransactionTypeIssue,
				SourceWarehouseID: 1,
				Lines:             []LineInput{{ItemID: 1, Qty: 0}},
			},
			err: ErrInvalidConfiguration,
		},
		{
			name: "valid receipt",
			input: EntryInput{
				Type:              ledger.TransactionTypeReceipt,
				TargetWarehouseID: 2,
				Lines:             []LineInput{{ItemID: 1, Qty: 1}},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfiguration(tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, issueInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, issueInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, first.ID, 7)
	require.NoError(t, err)

	drafts, total, err := svc.List(ctx, EntryFilter{Status: StatusDraft})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, drafts, 1)
}
