package generation

import "context"

// Leaser grants exclusive ownership of an entity key across service instances.
type Leaser interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// LocalLeaser is used when a single instance owns every key.
type LocalLeaser struct{}

func (LocalLeaser) Acquire(context.Context, string) (Lease, error) { return localLease{}, nil }

type localLease struct{}

func (localLease) Extend(context.Context) error  { return nil }
func (localLease) Release(context.Context) error { return nil }

func leaseKey(conversationID string) string {
	return "generation:" + conversationID
}
