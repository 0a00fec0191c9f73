package tournament

import (
	"strings"
	"time"
)

// Tournament is the normalized metadata extracted from a wiki tournament
// page infobox. LeagueID is the join key into the statistics service;
// when it is nil, match and score sync for the tournament is skipped, not
// failed.
type Tournament struct {
	PageName     string     `validate:"required"`
	Name         string     `validate:"required"`
	Tier         string     `validate:"required"`
	ValveTier    string
	Location     string
	Venue        string
	PrizePoolRaw string
	PrizePoolUSD *int64     `validate:"omitempty,gt=0"`
	StartDate    *time.Time
	EndDate      *time.Time
	FormatText   string
	LeagueID     *int64     `validate:"omitempty,gt=0"`
	SourceURL    string     `validate:"omitempty,url"`

	// Extra keeps sanitized infobox fields the typed columns above do
	// not cover, so new wiki parameters survive a round trip.
	Extra map[string]string
}

// ID is the storage key: the wiki page name is the one identifier both
// data sources can be joined back to.
func (t Tournament) ID() string {
	return strings.TrimSpace(t.PageName)
}

func NormalizeTier(value string) string {
	tier := strings.TrimSpace(value)
	if tier == "" {
		return "Unranked"
	}
	return tier
}
