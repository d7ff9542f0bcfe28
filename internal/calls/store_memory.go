package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and credential-less local runs.
//
// Each call record carries its own mutex so that updates to different calls
// never contend; the outer lock only guards the maps.

type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]*memoryRecord
	byProvider map[string]string // provider_call_id -> call_id
}

type memoryRecord struct {
	mu   sync.Mutex
	call Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]*memoryRecord),
		byProvider: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[c.CallID]; ok {
		return ErrInvalidArgument
	}
	s.records[c.CallID] = &memoryRecord{call: c}
	if c.ProviderCallID != "" {
		s.byProvider[c.ProviderCallID] = c.CallID
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (Call, error) {
	rec, err := s.record(callID)
	if err != nil {
		return Call{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.call, nil
}

func (s *MemoryStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	s.mu.RLock()
	callID, ok := s.byProvider[providerCallID]
	s.mu.RUnlock()
	if !ok {
		return Call{}, ErrNotFound
	}
	return s.Get(ctx, callID)
}

func (s *MemoryStore) SetProviderCallID(ctx context.Context, callID, providerCallID string) error {
	if providerCallID == "" {
		return ErrInvalidArgument
	}
	rec, err := s.record(callID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.call.ProviderCallID == providerCallID {
		return nil
	}
	if rec.call.ProviderCallID != "" {
		return ErrProviderIDTaken
	}
	rec.call.ProviderCallID = providerCallID
	s.mu.Lock()
	s.byProvider[providerCallID] = callID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, callID string, fn func(Call) (Call, error)) (Call, error) {
	rec, err := s.record(callID)
	if err != nil {
		return Call{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, err := fn(rec.call)
	if err != nil {
		return Call{}, err
	}
	// identity fields are not updatable through this path
	next.CallID = rec.call.CallID
	next.ProviderCallID = rec.call.ProviderCallID
	rec.call = next
	return next, nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]Call, error) {
	s.mu.RLock()
	recs := make([]*memoryRecord, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]Call, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		c := r.call
		r.mu.Unlock()
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !c.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, c)
	}
	// newest first, matching the SQL store
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) record(callID string) (*memoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}
