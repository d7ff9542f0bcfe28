package actionlog

import (
	"strings"
	"time"
)

// Entry is an immutable, append-only record of one action or state
// transition on a call.
//
// Invariants:
// - Entries are never updated or deleted; together they reconstruct the
//   call's history.
// - CallID is required; every entry belongs to exactly one call.
// - Writing an entry is best-effort: a failed append must not block the
//   call flow that produced it.
//
// Storage recommendation (Postgres): table call_action_log with an
// INSERT-only policy.

type Entry struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	Action Action `json:"action" db:"action"`

	// Details is a free-form JSON payload (previous/new status, provider
	// fields, error text). Store as JSONB in Postgres.
	Details string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionCallInitiated      Action = "CALL_INITIATED"
	ActionCallPlaced         Action = "CALL_PLACED"
	ActionTransitionRejected Action = "TRANSITION_REJECTED"
	ActionRecordingAttached  Action = "RECORDING_ATTACHED"
	ActionSMSSent            Action = "SMS_SENT"
)

// StatusAction tags a status-transition entry, e.g. STATUS_COMPLETED.
func StatusAction(status string) Action {
	return Action("STATUS_" + strings.ToUpper(status))
}
