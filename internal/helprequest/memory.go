package helprequest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store backed by a map. One mutex covers every record.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]HelpRequest
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]HelpRequest)}
}

func (s *MemoryStore) Create(_ context.Context, r *HelpRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = clone(r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&r)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*HelpRequest
	for _, r := range s.requests {
		if f.Matches(&r) {
			c := clone(&r)
			out = append(out, &c)
		}
	}
	SortNewest(out)
	return out, nil
}

func (s *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]*HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*HelpRequest
	for _, r := range s.requests {
		if r.Status == StatusPending && r.Deadline.Before(now) {
			c := clone(&r)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*HelpRequest) error) (*HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	work := clone(&r)
	if err := fn(&work); err != nil {
		return nil, err
	}
	s.requests[id] = clone(&work)
	return &work, nil
}

func (s *MemoryStore) CountPending(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

// SortNewest orders requests by createdAt desc, then id.
func SortNewest(rs []*HelpRequest) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// clone deep-copies r so callers never share the ResolvedAt pointer.
func clone(r *HelpRequest) HelpRequest {
	c := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}
