package helprequest

import (
	"context"
	"time"
)

// Store persists help requests.
//
// Update runs fn against the current record and writes the result inside
// one critical section, so the status check in fn and the write cannot
// interleave with another Update of the same record.
type Store interface {
	Create(ctx context.Context, r *HelpRequest) error
	Get(ctx context.Context, id string) (*HelpRequest, error)
	// List returns matching requests, newest first.
	List(ctx context.Context, f Filter) ([]*HelpRequest, error)
	// ListExpired returns pending requests whose deadline is before now.
	ListExpired(ctx context.Context, now time.Time) ([]*HelpRequest, error)
	Update(ctx context.Context, id string, fn func(*HelpRequest) error) (*HelpRequest, error)
	// CountPending returns the number of pending requests.
	CountPending(ctx context.Context) (int, error)
}
