package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm-call-tracker/pkg/utils"
)

// PostgresStore persists calls in a `calls` table.
//
// Expected schema (managed externally):
//   calls(call_id PK, provider_call_id, user_id, from_number, to_number,
//         direction, status, started_at, ended_at NULL, duration_seconds,
//         recording_url, recording_duration_seconds, last_error,
//         created_at, updated_at)
// with a partial unique index on provider_call_id where it is non-empty.
//
// Update serializes concurrent writers per call with SELECT ... FOR UPDATE,
// which is what makes webhook read-modify-writes atomic per call id.

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const callColumns = `
call_id, provider_call_id, user_id, from_number, to_number, direction, status,
started_at, ended_at, duration_seconds, recording_url, recording_duration_seconds,
last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(r rowScanner) (Call, error) {
	var c Call
	var endedAt sql.NullTime
	err := r.Scan(
		&c.CallID,
		&c.ProviderCallID,
		&c.UserID,
		&c.From,
		&c.To,
		&c.Direction,
		&c.Status,
		&c.StartedAt,
		&endedAt,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.RecordingDurationSeconds,
		&c.LastError,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

func endedAtArg(c Call) any {
	if c.EndedAt == nil {
		return nil
	}
	return *c.EndedAt
}

func (s *PostgresStore) Create(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`
	_, err := s.db.ExecContext(ctx, q,
		c.CallID, c.ProviderCallID, c.UserID, c.From, c.To, c.Direction, c.Status,
		c.StartedAt, endedAtArg(c), c.DurationSeconds, c.RecordingURL,
		c.RecordingDurationSeconds, c.LastError, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, callID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	const q = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1 LIMIT 1`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) SetProviderCallID(ctx context.Context, callID, providerCallID string) error {
	if providerCallID == "" {
		return ErrInvalidArgument
	}
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT provider_call_id FROM calls WHERE call_id = $1 FOR UPDATE`
		var existing string
		if err := tx.QueryRowContext(ctx, sel, callID).Scan(&existing); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if existing == providerCallID {
			return nil
		}
		if existing != "" {
			return ErrProviderIDTaken
		}
		const upd = `UPDATE calls SET provider_call_id = $2, updated_at = $3 WHERE call_id = $1`
		_, err := tx.ExecContext(ctx, upd, callID, providerCallID, time.Now().UTC())
		return err
	})
}

func (s *PostgresStore) Update(ctx context.Context, callID string, fn func(Call) (Call, error)) (Call, error) {
	var out Call
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Row lock: concurrent updates to the same call wait here; other calls
		// lock independent rows and proceed.
		const sel = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1 FOR UPDATE`
		current, err := scanCall(tx.QueryRowContext(ctx, sel, callID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.CallID = current.CallID
		next.ProviderCallID = current.ProviderCallID

		const upd = `
UPDATE calls SET
  status = $2,
  started_at = $3,
  ended_at = $4,
  duration_seconds = $5,
  recording_url = $6,
  recording_duration_seconds = $7,
  last_error = $8,
  updated_at = $9
WHERE call_id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			next.CallID, next.Status, next.StartedAt, endedAtArg(next),
			next.DurationSeconds, next.RecordingURL, next.RecordingDurationSeconds,
			next.LastError, next.UpdatedAt,
		); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Call{}, err
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE ($1 = '' OR user_id = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
`
	var from, to any
	if !f.From.IsZero() {
		from = f.From
	}
	if !f.To.IsZero() {
		to = f.To
	}
	rows, err := s.db.QueryContext(ctx, q, f.UserID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
