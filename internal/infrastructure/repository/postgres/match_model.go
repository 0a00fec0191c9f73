package postgres

import "database/sql"

type matchTableModel struct {
	ID           int64         `db:"id"`
	TournamentID string        `db:"tournament_id"`
	RadiantID    int64         `db:"radiant_team_id"`
	RadiantName  string        `db:"radiant_name"`
	DireID       int64         `db:"dire_team_id"`
	DireName     string        `db:"dire_name"`
	RadiantWin   bool          `db:"radiant_win"`
	StartTime    sql.NullTime  `db:"start_time"`
	SeriesID     sql.NullInt64 `db:"series_id"`
	Stage        string        `db:"stage"`
	Substage     string        `db:"substage"`
	Round        string        `db:"round"`
	SeriesFormat string        `db:"series_format"`
	GameNumber   int           `db:"game_number"`
}
