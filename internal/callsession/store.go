package callsession

import (
	"context"
	"sort"
)

// Store persists sessions and callers.
//
// Update applies fn to the current copy of the session and writes the
// result back atomically; an error from fn aborts the write.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// List returns at most limit sessions, newest first.
	List(ctx context.Context, limit int) ([]*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	// UpsertCaller applies fn to the stored caller, or to a zero Caller with
	// only ID set when none exists, and saves the result.
	UpsertCaller(ctx context.Context, id string, fn func(*Caller)) (*Caller, error)
	GetCaller(ctx context.Context, id string) (*Caller, error)
}

// SortNewest orders sessions by start time descending, id as tiebreak.
func SortNewest(ss []*Session) {
	sort.SliceStable(ss, func(i, j int) bool {
		if !ss[i].StartedAt.Equal(ss[j].StartedAt) {
			return ss[i].StartedAt.After(ss[j].StartedAt)
		}
		return ss[i].ID < ss[j].ID
	})
}
