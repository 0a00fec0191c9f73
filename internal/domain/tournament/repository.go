package tournament

import "context"

// Repository is the storage collaborator for tournament rows. Upsert is
// idempotent on the page name; Exists backs the batch drivers' resumption
// check.
type Repository interface {
	Upsert(ctx context.Context, t Tournament) error
	Exists(ctx context.Context, pageName string) (bool, error)
}
