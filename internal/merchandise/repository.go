package merchandise

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/internal/platform/db"
)

// Repository persists merchandise entries in PostgreSQL.
type Repository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	ReplaceDraft(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter EntryFilter) ([]Entry, int, error)
	TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, entry Entry) (Entry, error) {
	now := time.Now()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO merchandise_entries (reference, entry_type, source_warehouse_id, target_warehouse_id, description, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING id`,
			entry.Reference, string(entry.Type), nullInt(entry.SourceWarehouseID), nullInt(entry.TargetWarehouseID),
			entry.Description, string(entry.Status), nullInt(entry.CreatedBy), now).Scan(&entry.ID)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, entry.ID, entry.Lines)
	})
	if err != nil {
		return Entry{}, err
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return r.Get(ctx, entry.ID)
}

// ReplaceDraft rewrites header fields and lines of a draft entry.
func (r *repository) ReplaceDraft(ctx context.Context, entry Entry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE merchandise_entries SET entry_type=$1, source_warehouse_id=$2, target_warehouse_id=$3, description=$4, updated_at=NOW()
WHERE id=$5 AND status=$6`,
			string(entry.Type), nullInt(entry.SourceWarehouseID), nullInt(entry.TargetWarehouseID), entry.Description, entry.ID, string(StatusDraft))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrInvalidStatus
		}
		if _, err := tx.Exec(ctx, `DELETE FROM merchandise_entry_lines WHERE entry_id=$1`, entry.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, entry.ID, entry.Lines)
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Entry, error) {
	var entry Entry
	var entryType, status string
	var source, target, createdBy *int64
	err := r.pool.QueryRow(ctx, `SELECT id, reference, entry_type, source_warehouse_id, target_warehouse_id, description, status, created_by, created_at, updated_at, submitted_at, cancelled_at
FROM merchandise_entries WHERE id=$1`, id).
		Scan(&entry.ID, &entry.Reference, &entryType, &source, &target, &entry.Description, &status, &createdBy,
			&entry.CreatedAt, &entry.UpdatedAt, &entry.SubmittedAt, &entry.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	entry.Type = ledger.TransactionType(entryType)
	entry.Status = Status(status)
	entry.SourceWarehouseID = deref(source)
	entry.TargetWarehouseID = deref(target)
	entry.CreatedBy = deref(createdBy)

	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, item_id, item_name, qty FROM merchandise_entry_lines WHERE entry_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.ItemID, &line.ItemName, &line.Qty); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) List(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	query := `SELECT id, reference, entry_type, source_warehouse_id, target_warehouse_id, description, status, created_by, created_at, updated_at, submitted_at, cancelled_at
FROM merchandise_entries WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM merchandise_entries WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Status != "" {
		argCount++
		clause := ` AND status=$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		argCount++
		clause := ` AND entry_type=$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, string(filter.Type))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC, id DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var entryType, status string
		var source, target, createdBy *int64
		if err := rows.Scan(&entry.ID, &entry.Reference, &entryType, &source, &target, &entry.Description, &status, &createdBy,
			&entry.CreatedAt, &entry.UpdatedAt, &entry.SubmittedAt, &entry.CancelledAt); err != nil {
			return nil, 0, err
		}
		entry.Type = ledger.TransactionType(entryType)
		entry.Status = Status(status)
		entry.SourceWarehouseID = deref(source)
		entry.TargetWarehouseID = deref(target)
		entry.CreatedBy = deref(createdBy)
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// TransitionStatus flips the entry status only when the current status
// matches. The compare-and-set keeps a cancellation from racing a fresh
// submission of the same entry. Reverting to draft clears the timestamp the
// failed submission attempt left behind.
func (r *repository) TransitionStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	switch to {
	case StatusSubmitted:
		tag, err = r.pool.Exec(ctx, `UPDATE merchandise_entries SET status=$1, submitted_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
			string(to), at, id, string(from))
	case StatusCancelled:
		tag, err = r.pool.Exec(ctx, `UPDATE merchandise_entries SET status=$1, cancelled_at=$2, updated_at=NOW() WHERE id=$3 AND status=$4`,
			string(to), at, id, string(from))
	default:
		tag, err = r.pool.Exec(ctx, `UPDATE merchandise_entries SET status=$1, submitted_at=NULL, updated_at=NOW() WHERE id=$2 AND status=$3`,
			string(to), id, string(from))
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, entryID int64, lines []EntryLine) error {
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `INSERT INTO merchandise_entry_lines (entry_id, item_id, item_name, qty) VALUES ($1,$2,$3,$4)`,
			entryID, line.ItemID, line.ItemName, line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func deref(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}
