package actionlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the call action trail.
//
// It MUST be append-only. No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Entry) error
	ListByCall(ctx context.Context, callID string) ([]Entry, error)
}

var ErrInvalidEntry = errors.New("actionlog: invalid entry")

// Service writes and reads the per-call audit trail.
//
// Callers should treat appends as best-effort: log the error and move on
// rather than failing the transition that produced the entry.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("actionlog: repository not configured")
	}
	if e.CallID == "" || e.Action == "" {
		return ErrInvalidEntry
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an entry with details marshaled to JSON.
func (s *Service) Record(ctx context.Context, callID string, action Action, details map[string]any) error {
	var detailsJSON string
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(b)
	}
	return s.Append(ctx, Entry{CallID: callID, Action: action, Details: detailsJSON})
}

func (s *Service) ListByCall(ctx context.Context, callID string) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("actionlog: repository not configured")
	}
	if callID == "" {
		return nil, ErrInvalidEntry
	}
	return s.repo.ListByCall(ctx, callID)
}
