package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
)

// RecordRepository stores talk records in postgres. Every operation is a
// single statement; the store's per-row atomicity is the only concurrency
// control the bridge relies on.
type RecordRepository struct {
	db *pgxpool.Pool
}

func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{
		db: db,
	}
}

func (r *RecordRepository) Pool() *pgxpool.Pool {
	return r.db
}

// InsertRecord appends one unacknowledged record and returns its id.
func (r *RecordRepository) InsertRecord(ctx context.Context, text string) (string, error) {
	const query = `
        INSERT INTO talk.records (id, text, acknowledged)
        VALUES ($1, $2, false);
    `

	id := uuid.New()

	if _, err := r.db.Exec(ctx, query, id, text); err != nil {
		return "", fmt.Errorf("%w: insert talk record: %w", apperrors.ErrStoreWrite, err)
	}

	return id.String(), nil
}

// SelectOldestUnacknowledged returns the single oldest record matching the
// consumption filter, or ErrNoPendingRecord when the set is empty.
func (r *RecordRepository) SelectOldestUnacknowledged(ctx context.Context) (*model.TalkRecord, error) {
	const query = `
        SELECT id, text, acknowledged, created_at, acknowledged_at
        FROM talk.records
        WHERE acknowledged = false AND text <> ''
        ORDER BY created_at ASC
        LIMIT 1;
    `

	var (
		record model.TalkRecord
		id     uuid.UUID
	)

	if err := r.db.QueryRow(ctx, query).Scan(
		&id,
		&record.Text,
		&record.Acknowledged,
		&record.CreatedAt,
		&record.AcknowledgedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNoPendingRecord
		}

		return nil, fmt.Errorf("%w: select oldest unacknowledged: %w", apperrors.ErrStoreRead, err)
	}

	record.ID = id.String()

	return &record, nil
}

// UpdateAsAcknowledged flips the flag. Idempotent: acknowledging a record
// that is already acknowledged changes nothing.
func (r *RecordRepository) UpdateAsAcknowledged(ctx context.Context, recordID string) error {
	const query = `
        UPDATE talk.records
        SET acknowledged = true, acknowledged_at = NOW()
        WHERE id = $1;
    `

	id, err := uuid.Parse(recordID)
	if err != nil {
		return fmt.Errorf("%w: invalid record id %q: %w", apperrors.ErrStoreWrite, recordID, err)
	}

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%w: mark acknowledged: %w", apperrors.ErrStoreWrite, err)
	}

	return nil
}
