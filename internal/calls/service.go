package calls

import (
	"context"
	"time"

	"crm-call-tracker/internal/actionlog"
	"crm-call-tracker/internal/rbac"
	"crm-call-tracker/pkg/logger"

	"github.com/google/uuid"
)

// Service orchestrates the call lifecycle: record creation, status
// transition validation, derived timing fields, and the action trail.
//
// Transition rules:
// - Any non-terminal status may move to any other defined status.
// - Terminal statuses are sticky: an event that would leave one is rejected
//   (and logged), which is what makes out-of-order webhook delivery safe.
// - A terminal transition stamps EndedAt and DurationSeconds; replaying the
//   same terminal status recomputes the duration from the same stored pair,
//   so redelivery cannot change it.
// - Extra fields carried by an event (recording, error detail) are merged
//   onto the record whether or not the status itself changed.
//
// Per-call atomicity is delegated to Store.Update (see store.go).

type Service struct {
	store Store
	log   *actionlog.Service
	clock func() time.Time
}

func NewService(store Store, log *actionlog.Service) *Service {
	return &Service{store: store, log: log, clock: time.Now}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CallRef identifies a call either by its internal id or by the
// provider-assigned id carried in webhook payloads.
type CallRef struct {
	CallID         string
	ProviderCallID string
}

// StatusEvent is one normalized provider (or administrative) status event.
type StatusEvent struct {
	Status CallStatus

	// EventTime is the provider's event timestamp; nil means "use processing
	// time" for any terminal stamping.
	EventTime *time.Time

	// ProviderDurationSeconds is the provider-reported call duration. It only
	// matters for terminal events that carry no EventTime: EndedAt is then
	// derived as StartedAt plus this duration instead of processing time.
	ProviderDurationSeconds *int

	Extra EventFields
}

// EventFields are optional attributes delivered alongside a status event.
// Zero values are ignored on merge; a later recording URL replaces an
// earlier one.
type EventFields struct {
	RecordingURL             string
	RecordingDurationSeconds int
	ErrorDetail              string
}

type CreateCallRequest struct {
	UserID string
	From   string
	To     string

	// Direction defaults to outbound.
	Direction Direction

	// InitialStatus defaults to CallStatusInitiated.
	InitialStatus CallStatus

	// ProviderCallID may be set for provider-originated (inbound) calls where
	// the id is already known at creation time.
	ProviderCallID string
}

func (s *Service) CreateCall(ctx context.Context, req CreateCallRequest) (Call, error) {
	if req.UserID == "" || req.From == "" || req.To == "" {
		return Call{}, ErrInvalidArgument
	}
	status := req.InitialStatus
	if status == "" {
		status = CallStatusInitiated
	}
	if !status.Valid() {
		return Call{}, ErrInvalidArgument
	}
	direction := req.Direction
	if direction == "" {
		direction = DirectionOutbound
	}

	now := s.clock().UTC()
	c := Call{
		CallID:         uuid.NewString(),
		ProviderCallID: req.ProviderCallID,
		UserID:         req.UserID,
		From:           req.From,
		To:             req.To,
		Direction:      direction,
		Status:         status,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status.IsTerminal() {
		// A call born terminal never had a connected interval.
		end := now
		c.EndedAt = &end
		c.DurationSeconds = 0
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Call{}, err
	}

	s.record(ctx, c.CallID, actionlog.ActionCallInitiated, map[string]any{
		"user_id":     c.UserID,
		"from_number": c.From,
		"to_number":   c.To,
		"direction":   string(c.Direction),
		"status":      string(c.Status),
	})
	return c, nil
}

// ApplyStatusEvent validates and applies one status event to a call.
//
// The returned bool reports whether the call's status actually changed in
// this event: false for redelivery of an already-applied terminal status.
// Callers gating side effects (like freeing a concurrent-call slot) on a
// transition must use it rather than err == nil.
//
// Rejected transitions (attempts to leave a terminal status) return the
// unchanged-in-status record together with ErrInvalidTransition; callers at
// the webhook boundary treat that as an acknowledged no-op. Extra fields are
// merged either way.
func (s *Service) ApplyStatusEvent(ctx context.Context, ref CallRef, ev StatusEvent) (Call, bool, error) {
	if !ev.Status.Valid() {
		return Call{}, false, ErrInvalidArgument
	}
	callID, err := s.resolveCallID(ctx, ref)
	if err != nil {
		return Call{}, false, err
	}

	now := s.clock().UTC()
	var prev CallStatus
	var rejected, transitioned bool

	updated, err := s.store.Update(ctx, callID, func(c Call) (Call, error) {
		prev = c.Status
		rejected, transitioned = false, false
		mergeEventFields(&c, ev.Extra)

		switch {
		case c.Status.IsTerminal() && ev.Status == c.Status:
			// Redelivery of the terminal status already applied: keep the
			// stored EndedAt and recompute the duration from the same pair.
			if c.EndedAt != nil {
				c.DurationSeconds = durationSeconds(c.StartedAt, *c.EndedAt)
			}
		case c.Status.IsTerminal():
			rejected = true
		default:
			c.Status = ev.Status
			transitioned = true
			if ev.Status.IsTerminal() {
				end := now
				switch {
				case ev.EventTime != nil && !ev.EventTime.IsZero():
					end = ev.EventTime.UTC()
				case ev.ProviderDurationSeconds != nil && *ev.ProviderDurationSeconds >= 0:
					end = c.StartedAt.Add(time.Duration(*ev.ProviderDurationSeconds) * time.Second)
				}
				c.EndedAt = &end
				c.DurationSeconds = durationSeconds(c.StartedAt, end)
			}
		}
		c.UpdatedAt = now
		return c, nil
	})
	if err != nil {
		return Call{}, false, err
	}

	if rejected {
		s.record(ctx, callID, actionlog.ActionTransitionRejected, map[string]any{
			"status":           string(prev),
			"attempted_status": string(ev.Status),
		})
		return updated, false, ErrInvalidTransition
	}

	details := map[string]any{
		"previous_status": string(prev),
		"new_status":      string(updated.Status),
	}
	if ev.Extra.RecordingURL != "" {
		details["recording_url"] = ev.Extra.RecordingURL
	}
	if ev.Extra.ErrorDetail != "" {
		details["error"] = ev.Extra.ErrorDetail
	}
	s.record(ctx, callID, actionlog.StatusAction(string(ev.Status)), details)
	return updated, transitioned, nil
}

// GetCallForUser enforces ownership: only the owning user (or an admin)
// may read a call.
func (s *Service) GetCallForUser(ctx context.Context, callID, userID, role string) (Call, error) {
	if callID == "" || userID == "" {
		return Call{}, ErrInvalidArgument
	}
	c, err := s.store.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if c.UserID != userID && !rbac.IsAdmin(role) {
		return Call{}, ErrForbidden
	}
	return c, nil
}

// AttachRecording is a field-only update, independent of call status. It is
// the path used when a recording lands after the call is already terminal.
func (s *Service) AttachRecording(ctx context.Context, ref CallRef, recordingURL string, durationSeconds int) (Call, error) {
	if recordingURL == "" {
		return Call{}, ErrInvalidArgument
	}
	callID, err := s.resolveCallID(ctx, ref)
	if err != nil {
		return Call{}, err
	}

	now := s.clock().UTC()
	updated, err := s.store.Update(ctx, callID, func(c Call) (Call, error) {
		c.RecordingURL = recordingURL
		if durationSeconds > 0 {
			c.RecordingDurationSeconds = durationSeconds
		}
		c.UpdatedAt = now
		return c, nil
	})
	if err != nil {
		return Call{}, err
	}

	s.record(ctx, callID, actionlog.ActionRecordingAttached, map[string]any{
		"recording_url":              recordingURL,
		"recording_duration_seconds": durationSeconds,
	})
	return updated, nil
}

// AttachProviderCallID records the provider-assigned id after placement.
func (s *Service) AttachProviderCallID(ctx context.Context, callID, providerCallID string) error {
	if err := s.store.SetProviderCallID(ctx, callID, providerCallID); err != nil {
		return err
	}
	s.record(ctx, callID, actionlog.ActionCallPlaced, map[string]any{
		"provider_call_id": providerCallID,
	})
	return nil
}

// GetCallByProviderID looks a call up by its provider-assigned id. Webhook
// handlers use it to detect redelivered inbound notifications.
func (s *Service) GetCallByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrInvalidArgument
	}
	return s.store.GetByProviderCallID(ctx, providerCallID)
}

func (s *Service) ListCalls(ctx context.Context, f ListFilter) ([]Call, error) {
	return s.store.List(ctx, f)
}

// RecordSMS notes an outbound SMS on the call's action trail. Best-effort,
// like every other log append.
func (s *Service) RecordSMS(ctx context.Context, callID, to, providerMessageID string) {
	details := map[string]any{"to_number": to}
	if providerMessageID != "" {
		details["provider_message_id"] = providerMessageID
	}
	s.record(ctx, callID, actionlog.ActionSMSSent, details)
}

// History returns the call's action trail, oldest first.
func (s *Service) History(ctx context.Context, callID string) ([]actionlog.Entry, error) {
	return s.log.ListByCall(ctx, callID)
}

func (s *Service) resolveCallID(ctx context.Context, ref CallRef) (string, error) {
	if ref.CallID != "" {
		return ref.CallID, nil
	}
	if ref.ProviderCallID == "" {
		return "", ErrInvalidArgument
	}
	c, err := s.store.GetByProviderCallID(ctx, ref.ProviderCallID)
	if err != nil {
		return "", err
	}
	return c.CallID, nil
}

// record appends to the action log best-effort: the transition has already
// been persisted, so a log failure is reported but does not fail the caller.
func (s *Service) record(ctx context.Context, callID string, action actionlog.Action, details map[string]any) {
	if s.log == nil {
		return
	}
	if err := s.log.Record(ctx, callID, action, details); err != nil {
		logger.From(ctx).Warn("action log append failed", "call_id", callID, "action", string(action), "err", err)
	}
}

func mergeEventFields(c *Call, f EventFields) {
	if f.RecordingURL != "" {
		c.RecordingURL = f.RecordingURL
	}
	if f.RecordingDurationSeconds > 0 {
		c.RecordingDurationSeconds = f.RecordingDurationSeconds
	}
	if f.ErrorDetail != "" {
		c.LastError = f.ErrorDetail
	}
}

func durationSeconds(start, end time.Time) int {
	d := int(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
