package postgres

import (
	"database/sql"
	"time"
)

type tournamentTableModel struct {
	PageName     string         `db:"page_name"`
	Name         string         `db:"name"`
	Tier         string         `db:"tier"`
	ValveTier    string         `db:"valve_tier"`
	Location     string         `db:"location"`
	Venue        string         `db:"venue"`
	PrizePoolRaw string         `db:"prize_pool_raw"`
	PrizePoolUSD sql.NullInt64  `db:"prize_pool_usd"`
	StartDate    sql.NullTime   `db:"start_date"`
	EndDate      sql.NullTime   `db:"end_date"`
	FormatText   string         `db:"format_text"`
	LeagueID     sql.NullInt64  `db:"league_id"`
	SourceURL    string         `db:"source_url"`
	Extra        sql.NullString `db:"extra"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
