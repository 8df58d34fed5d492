package knowledge

import "context"

// Store persists knowledge items.
//
// Update applies fn to the current copy of the item and writes the result
// back atomically; an error from fn aborts the write and is returned as is.
type Store interface {
	Search(ctx context.Context, q Query) ([]Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	// List returns active items ordered by updatedAt desc.
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, id string, fn func(*Item) error) (*Item, error)
	// SoftDelete clears the active flag. It reports false when the item was
	// already inactive.
	SoftDelete(ctx context.Context, id string) (bool, error)
	// Count returns the number of items, active or not.
	Count(ctx context.Context) (int, error)
}
