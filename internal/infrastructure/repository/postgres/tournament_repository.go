package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
	qb "github.com/avdeenkov/tourneysync/internal/platform/querybuilder"
)

type TournamentRepository struct {
	db *sqlx.DB
}

func NewTournamentRepository(db *sqlx.DB) *TournamentRepository {
	return &TournamentRepository{db: db}
}

func (r *TournamentRepository) Upsert(ctx context.Context, t tournament.Tournament) error {
	query, args, err := qb.InsertInto("tournaments").
		Columns(
			"page_name", "name", "tier", "valve_tier", "location", "venue",
			"prize_pool_raw", "prize_pool_usd", "start_date", "end_date",
			"format_text", "league_id", "source_url", "extra",
		).
		Values(
			t.ID(), t.Name, t.Tier, t.ValveTier, t.Location, t.Venue,
			t.PrizePoolRaw, int64PtrToNull(t.PrizePoolUSD),
			timePtrToNull(t.StartDate), timePtrToNull(t.EndDate),
			t.FormatText, int64PtrToNull(t.LeagueID), t.SourceURL,
			encodeJSONMap(t.Extra),
		).
		Suffix(`ON CONFLICT (page_name)
DO UPDATE SET
    name = EXCLUDED.name,
    tier = EXCLUDED.tier,
    valve_tier = EXCLUDED.valve_tier,
    location = EXCLUDED.location,
    venue = EXCLUDED.venue,
    prize_pool_raw = EXCLUDED.prize_pool_raw,
    prize_pool_usd = EXCLUDED.prize_pool_usd,
    start_date = EXCLUDED.start_date,
    end_date = EXCLUDED.end_date,
    format_text = EXCLUDED.format_text,
    league_id = EXCLUDED.league_id,
    source_url = EXCLUDED.source_url,
    extra = EXCLUDED.extra,
    updated_at = now()`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert tournament query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert tournament page_name=%s: %w", t.ID(), err)
	}
	return nil
}

func (r *TournamentRepository) Exists(ctx context.Context, pageName string) (bool, error) {
	query, args, err := qb.Select("1").From("tournaments").
		Where(qb.Eq("page_name", pageName)).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build tournament exists query: %w", err)
	}

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check tournament exists page_name=%s: %w", pageName, err)
	}
	return true, nil
}

func (r *TournamentRepository) GetByPageName(ctx context.Context, pageName string) (tournament.Tournament, bool, error) {
	query, args, err := qb.Select("*").From("tournaments").
		Where(qb.Eq("page_name", pageName)).
		ToSQL()
	if err != nil {
		return tournament.Tournament{}, false, fmt.Errorf("build get tournament query: %w", err)
	}

	var row tournamentTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return tournament.Tournament{}, false, nil
		}
		return tournament.Tournament{}, false, fmt.Errorf("get tournament page_name=%s: %w", pageName, err)
	}

	return tournament.Tournament{
		PageName:     row.PageName,
		Name:         row.Name,
		Tier:         row.Tier,
		ValveTier:    row.ValveTier,
		Location:     row.Location,
		Venue:        row.Venue,
		PrizePoolRaw: row.PrizePoolRaw,
		PrizePoolUSD: nullToInt64Ptr(row.PrizePoolUSD),
		StartDate:    nullToTimePtr(row.StartDate),
		EndDate:      nullToTimePtr(row.EndDate),
		FormatText:   row.FormatText,
		LeagueID:     nullToInt64Ptr(row.LeagueID),
		SourceURL:    row.SourceURL,
		Extra:        decodeJSONMap(row.Extra),
	}, true, nil
}
