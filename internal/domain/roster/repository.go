package roster

import "context"

// Repository persists participants and their player slots. Replace
// semantics are delete-then-insert under the tournament: partial merges
// would leak rows for teams that dropped out between imports.
type Repository interface {
	UpsertTeams(ctx context.Context, participants []Participant) error
	ReplaceTournamentTeams(ctx context.Context, tournamentID string, participants []Participant) error
	UpsertPlayers(ctx context.Context, participants []Participant) error
	ReplaceTournamentPlayers(ctx context.Context, tournamentID string, participants []Participant) error
}
