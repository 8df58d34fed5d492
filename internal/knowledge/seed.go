package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeedItems are loaded into an empty store at startup.
var SeedItems = []Item{
	{
		Question:   "What are your hours?",
		Answer:     "We're open Monday through Friday from 9 AM to 7 PM, Saturday from 9 AM to 6 PM, and Sunday from 10 AM to 5 PM.",
		Category:   "Hours",
		Confidence: 0.9,
	},
	{
		Question:   "Do you do keratin treatments?",
		Answer:     "Yes, we offer professional keratin treatments! Our keratin smoothing service reduces frizz and makes hair more manageable. The treatment takes about 2-3 hours and lasts 3-4 months. Prices start at $200.",
		Category:   "Services",
		Confidence: 0.95,
	},
}

// Seed inserts SeedItems when the store holds no items at all. It returns
// the number of items created.
func Seed(ctx context.Context, store Store, now time.Time) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count knowledge: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	now = now.UTC()
	for i, seed := range SeedItems {
		item := seed
		item.ID = uuid.NewString()
		item.Active = true
		item.CreatedAt = now
		item.UpdatedAt = now
		if err := store.Create(ctx, &item); err != nil {
			return i, fmt.Errorf("seed %q: %w", item.Question, err)
		}
	}
	return len(SeedItems), nil
}
