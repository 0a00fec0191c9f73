package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/avdeenkov/tourneysync/internal/domain/match"
	"github.com/avdeenkov/tourneysync/internal/domain/stage"
	qb "github.com/avdeenkov/tourneysync/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) ReplaceByTournament(ctx context.Context, tournamentID string, matches []match.Match) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace matches: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleteQuery, deleteArgs, err := qb.DeleteFrom("matches").
		Where(qb.Eq("tournament_id", tournamentID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete matches query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("delete matches tournament=%s: %w", tournamentID, err)
	}

	for _, m := range matches {
		query, args, err := qb.InsertInto("matches").
			Columns(
				"id", "tournament_id", "radiant_team_id", "radiant_name",
				"dire_team_id", "dire_name", "radiant_win", "start_time",
				"series_id", "stage", "substage", "round", "series_format",
				"game_number",
			).
			Values(
				m.ID, tournamentID, m.RadiantID, m.RadiantName,
				m.DireID, m.DireName, m.RadiantWin, timePtrToNull(m.StartTime),
				int64PtrToNull(m.SeriesID), string(m.Stage), m.Substage,
				string(m.Round), string(m.Series), m.GameNumber,
			).
			Suffix(`ON CONFLICT (id)
DO UPDATE SET
    tournament_id = EXCLUDED.tournament_id,
    radiant_team_id = EXCLUDED.radiant_team_id,
    radiant_name = EXCLUDED.radiant_name,
    dire_team_id = EXCLUDED.dire_team_id,
    dire_name = EXCLUDED.dire_name,
    radiant_win = EXCLUDED.radiant_win,
    start_time = EXCLUDED.start_time,
    series_id = EXCLUDED.series_id,
    stage = EXCLUDED.stage,
    substage = EXCLUDED.substage,
    round = EXCLUDED.round,
    series_format = EXCLUDED.series_format,
    game_number = EXCLUDED.game_number`).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert match query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert match id=%d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace matches tx: %w", err)
	}
	return nil
}

func (r *MatchRepository) ByTournament(ctx context.Context, tournamentID string) ([]match.Match, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(qb.Eq("tournament_id", tournamentID)).
		OrderBy("series_id NULLS LAST", "game_number", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matches tournament=%s: %w", tournamentID, err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, match.Match{
			ID:           row.ID,
			TournamentID: row.TournamentID,
			RadiantID:    row.RadiantID,
			RadiantName:  row.RadiantName,
			DireID:       row.DireID,
			DireName:     row.DireName,
			RadiantWin:   row.RadiantWin,
			StartTime:    nullToTimePtr(row.StartTime),
			SeriesID:     nullToInt64Ptr(row.SeriesID),
			Stage:        stage.Stage(row.Stage),
			Substage:     row.Substage,
			Round:        stage.Round(row.Round),
			Series:       stage.SeriesFormat(row.SeriesFormat),
			GameNumber:   row.GameNumber,
		})
	}
	return out, nil
}
