package memory

import (
	"context"
	"sync"

	"github.com/avdeenkov/tourneysync/internal/domain/roster"
)

type RosterRepository struct {
	mu      sync.RWMutex
	teams   map[string]roster.Participant
	players map[string]roster.PlayerSlot

	teamLinks   map[string][]string
	playerLinks map[string][]string
}

func NewRosterRepository() *RosterRepository {
	return &RosterRepository{
		teams:       make(map[string]roster.Participant),
		players:     make(map[string]roster.PlayerSlot),
		teamLinks:   make(map[string][]string),
		playerLinks: make(map[string][]string),
	}
}

func (r *RosterRepository) UpsertTeams(_ context.Context, participants []roster.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, participant := range participants {
		r.teams[roster.NormalizeTeamKey(participant.TeamName)] = participant
	}
	return nil
}

func (r *RosterRepository) ReplaceTournamentTeams(_ context.Context, tournamentID string, participants []roster.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	links := make([]string, 0, len(participants))
	for _, participant := range participants {
		links = append(links, roster.NormalizeTeamKey(participant.TeamName))
	}
	r.teamLinks[tournamentID] = links
	return nil
}

func (r *RosterRepository) UpsertPlayers(_ context.Context, participants []roster.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, participant := range participants {
		for _, slot := range participant.Players {
			r.players[slot.Nickname] = slot
		}
	}
	return nil
}

func (r *RosterRepository) ReplaceTournamentPlayers(_ context.Context, tournamentID string, participants []roster.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var links []string
	for _, participant := range participants {
		for _, slot := range participant.Players {
			links = append(links, slot.Nickname)
		}
	}
	r.playerLinks[tournamentID] = links
	return nil
}

// TeamLinks reports the current tournament-to-team link set, in insert
// order.
func (r *RosterRepository) TeamLinks(tournamentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.teamLinks[tournamentID]))
	copy(out, r.teamLinks[tournamentID])
	return out
}

func (r *RosterRepository) PlayerLinks(tournamentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.playerLinks[tournamentID]))
	copy(out, r.playerLinks[tournamentID])
	return out
}
