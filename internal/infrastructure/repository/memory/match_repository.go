package memory

import (
	"context"
	"sync"

	"github.com/avdeenkov/tourneysync/internal/domain/match"
)

type MatchRepository struct {
	mu    sync.RWMutex
	items map[string][]match.Match
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{items: make(map[string][]match.Match)}
}

func (r *MatchRepository) ReplaceByTournament(_ context.Context, tournamentID string, matches []match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := make([]match.Match, len(matches))
	copy(replaced, matches)
	r.items[tournamentID] = replaced
	return nil
}

func (r *MatchRepository) ByTournament(tournamentID string) []match.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Match, len(r.items[tournamentID]))
	copy(out, r.items[tournamentID])
	return out
}
