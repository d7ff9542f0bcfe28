package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("calls: not found")
	ErrForbidden         = errors.New("calls: forbidden")
	ErrInvalidArgument   = errors.New("calls: invalid argument")
	ErrInvalidTransition = errors.New("calls: transition out of terminal status")
	ErrProviderIDTaken   = errors.New("calls: provider call id already set")
)

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	UserID string
	From   time.Time
	To     time.Time
}

// Store is the persistence contract for call records.
//
// Update is the only mutation path after creation: implementations must run
// fn as an atomic read-modify-write keyed on the call id, so that concurrent
// events for the same call are serialized while events for different calls
// proceed independently. The Postgres implementation uses a row lock inside
// a transaction; the in-memory implementation uses a per-call mutex.
type Store interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, callID string) (Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error)

	// SetProviderCallID records the provider-assigned identifier. The id is
	// write-once: setting a different value after one exists fails with
	// ErrProviderIDTaken; repeating the same value is a no-op.
	SetProviderCallID(ctx context.Context, callID, providerCallID string) error

	// Update applies fn to the current record and persists the result.
	// fn must not modify CallID or ProviderCallID; implementations preserve them.
	Update(ctx context.Context, callID string, fn func(Call) (Call, error)) (Call, error)

	List(ctx context.Context, f ListFilter) ([]Call, error)
}
