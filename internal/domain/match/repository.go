package match

import "context"

// Repository replaces a tournament's match set wholesale. Matches are
// derived entirely from upstream, so delete-then-insert keeps re-imports
// convergent without conflict bookkeeping.
type Repository interface {
	ReplaceByTournament(ctx context.Context, tournamentID string, matches []Match) error
}
