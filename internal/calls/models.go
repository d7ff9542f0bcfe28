package calls

import "time"

// SystemUserID owns calls that originate at the provider (inbound) rather
// than from an authenticated dashboard user.
const SystemUserID = "system"

// Call represents one attempted or completed phone call.
//
// Lifecycle invariants:
// - Status is one of the CallStatus values below; terminal statuses are sticky.
// - EndedAt and DurationSeconds are set together, only on a terminal transition.
// - ProviderCallID is set once (when the provider acknowledges the call) and
//   never changes afterward.
//
// Provider-specific payloads do not belong here; they are kept in the action
// log entry that recorded the event.

type Call struct {
	CallID         string `json:"call_id" db:"call_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// UserID is the dashboard user who initiated the call, or SystemUserID
	// for provider-originated inbound calls.
	UserID string `json:"user_id" db:"user_id"`

	From string `json:"from_number" db:"from_number"`
	To   string `json:"to_number" db:"to_number"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is derived as max(0, EndedAt-StartedAt) in whole seconds.
	// Meaningful only once EndedAt is set.
	DurationSeconds int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	RecordingURL             string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingDurationSeconds int    `json:"recording_duration_seconds,omitempty" db:"recording_duration_seconds"`

	// LastError holds provider error detail when the call failed at the boundary.
	LastError string `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type CallStatus string

const (
	CallStatusInitiated          CallStatus = "initiated"
	CallStatusQueued             CallStatus = "queued"
	CallStatusRinging            CallStatus = "ringing"
	CallStatusInProgress         CallStatus = "in_progress"
	CallStatusRecordingAvailable CallStatus = "recording_available"
	CallStatusCompleted          CallStatus = "completed"
	CallStatusBusy               CallStatus = "busy"
	CallStatusFailed             CallStatus = "failed"
	CallStatusNoAnswer           CallStatus = "no_answer"
	CallStatusCanceled           CallStatus = "canceled"
)

// IsTerminal reports whether no further status transition is accepted.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a member of the closed status enumeration.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusInitiated, CallStatusQueued, CallStatusRinging, CallStatusInProgress,
		CallStatusRecordingAvailable, CallStatusCompleted, CallStatusBusy,
		CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// ParseStatus validates a status string supplied by an API caller.
func ParseStatus(s string) (CallStatus, bool) {
	st := CallStatus(s)
	return st, st.Valid()
}
