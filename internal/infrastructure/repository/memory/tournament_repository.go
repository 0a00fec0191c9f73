package memory

import (
	"context"
	"sync"

	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
)

type TournamentRepository struct {
	mu    sync.RWMutex
	items map[string]tournament.Tournament
}

func NewTournamentRepository() *TournamentRepository {
	return &TournamentRepository{items: make(map[string]tournament.Tournament)}
}

func (r *TournamentRepository) Upsert(_ context.Context, t tournament.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[t.ID()] = t
	return nil
}

func (r *TournamentRepository) Exists(_ context.Context, pageName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[pageName]
	return ok, nil
}

func (r *TournamentRepository) Get(pageName string) (tournament.Tournament, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[pageName]
	return t, ok
}
