package actionlog

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to the call_action_log table.
//
// The table is INSERT-only; retention/partitioning is an operational concern.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO call_action_log (id, call_id, action, details, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.CallID, e.Action, e.Details, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Entry, error) {
	const q = `
SELECT id, call_id, action, details, created_at
FROM call_action_log
WHERE call_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CallID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
