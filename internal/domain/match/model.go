package match

import (
	"time"

	"github.com/avdeenkov/tourneysync/internal/domain/stage"
)

// Match is one game fetched from the statistics service, joined against
// the wiki-derived stage mapping. Team ids are the statistics-service
// numeric ids after identity resolution.
type Match struct {
	ID           int64
	TournamentID string
	RadiantID    int64
	RadiantName  string
	DireID       int64
	DireName     string
	RadiantWin   bool
	StartTime    *time.Time
	SeriesID     *int64

	Stage      stage.Stage
	Substage   string
	Round      stage.Round
	Series     stage.SeriesFormat
	GameNumber int
}
