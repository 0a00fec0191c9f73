package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/avdeenkov/tourneysync/internal/domain/roster"
	qb "github.com/avdeenkov/tourneysync/internal/platform/querybuilder"
)

type RosterRepository struct {
	db *sqlx.DB
}

func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) UpsertTeams(ctx context.Context, participants []roster.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert teams: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, participant := range participants {
		name := strings.TrimSpace(participant.TeamName)
		key := roster.NormalizeTeamKey(name)
		if key == "" {
			continue
		}

		query, args, err := qb.InsertInto("teams").
			Columns("name", "name_key").
			Values(name, key).
			Suffix(`ON CONFLICT (name_key)
DO UPDATE SET
    name = EXCLUDED.name,
    updated_at = now()`).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert team query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert team name=%s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert teams tx: %w", err)
	}
	return nil
}

func (r *RosterRepository) ReplaceTournamentTeams(ctx context.Context, tournamentID string, participants []roster.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace tournament teams: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	teamIDs, err := teamIDsByKey(ctx, tx, participants)
	if err != nil {
		return err
	}

	deleteQuery, deleteArgs, err := qb.DeleteFrom("tournament_teams").
		Where(qb.Eq("tournament_id", tournamentID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete tournament teams query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("delete tournament teams tournament=%s: %w", tournamentID, err)
	}

	for _, participant := range participants {
		key := roster.NormalizeTeamKey(participant.TeamName)
		teamID, ok := teamIDs[key]
		if !ok {
			return fmt.Errorf("replace tournament teams: team %q not upserted", participant.TeamName)
		}

		query, args, err := qb.InsertInto("tournament_teams").
			Columns(
				"tournament_id", "team_id", "coach", "qualifier",
				"placement", "notes", "logo_url", "logo_dark_url",
			).
			Values(
				tournamentID, teamID, participant.Coach, participant.Qualifier,
				participant.Placement, participant.Notes,
				participant.LogoURL, participant.LogoDarkURL,
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert tournament team query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert tournament team team=%s: %w", participant.TeamName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tournament teams tx: %w", err)
	}
	return nil
}

func (r *RosterRepository) UpsertPlayers(ctx context.Context, participants []roster.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert players: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, participant := range participants {
		for _, slot := range participant.Players {
			nickname := strings.TrimSpace(slot.Nickname)
			if nickname == "" {
				continue
			}

			query, args, err := qb.InsertInto("players").
				Columns("nickname", "country").
				Values(nickname, slot.Country).
				Suffix(`ON CONFLICT (nickname)
DO UPDATE SET
    country = COALESCE(NULLIF(EXCLUDED.country, ''), players.country),
    updated_at = now()`).
				ToSQL()
			if err != nil {
				return fmt.Errorf("build upsert player query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert player nickname=%s: %w", nickname, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert players tx: %w", err)
	}
	return nil
}

func (r *RosterRepository) ReplaceTournamentPlayers(ctx context.Context, tournamentID string, participants []roster.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace tournament players: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	teamIDs, err := teamIDsByKey(ctx, tx, participants)
	if err != nil {
		return err
	}
	playerIDs, err := playerIDsByNickname(ctx, tx, participants)
	if err != nil {
		return err
	}

	deleteQuery, deleteArgs, err := qb.DeleteFrom("tournament_players").
		Where(qb.Eq("tournament_id", tournamentID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete tournament players query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("delete tournament players tournament=%s: %w", tournamentID, err)
	}

	for _, participant := range participants {
		key := roster.NormalizeTeamKey(participant.TeamName)
		teamID, ok := teamIDs[key]
		if !ok {
			return fmt.Errorf("replace tournament players: team %q not upserted", participant.TeamName)
		}

		for _, slot := range participant.Players {
			nickname := strings.TrimSpace(slot.Nickname)
			playerID, ok := playerIDs[nickname]
			if !ok {
				if nickname == "" {
					continue
				}
				return fmt.Errorf("replace tournament players: player %q not upserted", nickname)
			}

			query, args, err := qb.InsertInto("tournament_players").
				Columns("tournament_id", "team_id", "player_id", "position", "is_sub").
				Values(tournamentID, teamID, playerID, slot.Position, slot.IsSub).
				ToSQL()
			if err != nil {
				return fmt.Errorf("build insert tournament player query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert tournament player nickname=%s: %w", nickname, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tournament players tx: %w", err)
	}
	return nil
}

func teamIDsByKey(ctx context.Context, tx *sqlx.Tx, participants []roster.Participant) (map[string]int64, error) {
	keys := make([]any, 0, len(participants))
	for _, participant := range participants {
		if key := roster.NormalizeTeamKey(participant.TeamName); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	query, args, err := qb.Select("id", "name", "name_key").From("teams").
		Where(qb.In("name_key", keys)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select team ids query: %w", err)
	}

	var rows []teamTableModel
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select team ids: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.NameKey] = row.ID
	}
	return out, nil
}

func playerIDsByNickname(ctx context.Context, tx *sqlx.Tx, participants []roster.Participant) (map[string]int64, error) {
	var nicknames []any
	for _, participant := range participants {
		for _, slot := range participant.Players {
			if nickname := strings.TrimSpace(slot.Nickname); nickname != "" {
				nicknames = append(nicknames, nickname)
			}
		}
	}
	if len(nicknames) == 0 {
		return map[string]int64{}, nil
	}

	query, args, err := qb.Select("id", "nickname", "country").From("players").
		Where(qb.In("nickname", nicknames)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player ids query: %w", err)
	}

	var rows []playerTableModel
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select player ids: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Nickname] = row.ID
	}
	return out, nil
}
