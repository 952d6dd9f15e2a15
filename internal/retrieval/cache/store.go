package cache

import "context"

// Store is the durable cache tier. Load returns (nil, nil) on a clean miss
// and an error only for unreadable or corrupted records; callers treat both
// the same way, so implementations never need to invent sentinel errors.
type Store interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// NopStore is a Store with no persistence; every lookup is a miss.
type NopStore struct{}

func (NopStore) Load(ctx context.Context, key string) (*Entry, error) { return nil, nil }
func (NopStore) Save(ctx context.Context, key string, e *Entry) error { return nil }
func (NopStore) Delete(ctx context.Context, key string) error         { return nil }
