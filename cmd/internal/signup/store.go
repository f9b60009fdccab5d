package signup

import "context"

// Store is the persistence boundary for signup records.
//
// Implementations must keep one record per verification token. FindByToken returns
// ErrNotFound when nothing matches; when several match (a store anomaly) it returns the first.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	FindByToken(ctx context.Context, token string) (Record, error)
	Patch(ctx context.Context, id string, p Patch) error
}
