package stage

import (
	"sort"
	"strings"
)

type Stage string

const (
	StageGroup    Stage = "group_stage"
	StagePlayoffs Stage = "playoffs"
)

// Round is the closed normalized bracket-position enum. Free-text labels
// that match nothing normalize to RoundUnknown; completeness of match
// coverage is prioritized over classification completeness.
type Round string

const (
	RoundUnknown           Round = "unknown"
	RoundGroup             Round = "group"
	RoundTiebreaker        Round = "tiebreaker"
	RoundUpperBracketR1    Round = "upper_bracket_r1"
	RoundUpperBracketQF    Round = "upper_bracket_qf"
	RoundUpperBracketSF    Round = "upper_bracket_sf"
	RoundUpperBracketFinal Round = "upper_bracket_final"
	RoundLowerBracketR1    Round = "lower_bracket_r1"
	RoundLowerBracketR2    Round = "lower_bracket_r2"
	RoundLowerBracketR3    Round = "lower_bracket_r3"
	RoundLowerBracketR4    Round = "lower_bracket_r4"
	RoundLowerBracketR5    Round = "lower_bracket_r5"
	RoundLowerBracketQF    Round = "lower_bracket_qf"
	RoundLowerBracketSF    Round = "lower_bracket_sf"
	RoundLowerBracketFinal Round = "lower_bracket_final"
	RoundQuarterfinal      Round = "quarterfinal"
	RoundSemifinal         Round = "semifinal"
	RoundThirdPlace        Round = "third_place"
	RoundGrandFinal        Round = "grand_final"
)

type SeriesFormat string

const (
	SeriesBo1 SeriesFormat = "bo1"
	SeriesBo2 SeriesFormat = "bo2"
	SeriesBo3 SeriesFormat = "bo3"
	SeriesBo5 SeriesFormat = "bo5"
)

// MatchInfo classifies one externally-identified match id within its
// tournament. PageSource records which sub-page (and strategy) produced
// the entry.
type MatchInfo struct {
	MatchID    int64
	Stage      Stage
	Substage   string
	Round      Round
	Series     SeriesFormat
	GameNumber int
	TeamA      string
	TeamB      string
	PageSource string
}

// SeriesInfo groups the MatchInfo entries of one best-of series: same two
// teams, same round and substage. MatchIDs are ordered ascending and
// drive game numbering.
type SeriesInfo struct {
	TeamA    string
	TeamB    string
	Round    Round
	Substage string
	Series   SeriesFormat
	MatchIDs []int64
}

// NormalizeRound maps a free-text round label into the closed enum.
// Ordering matters twice: upper/lower bracket detection runs before round
// tier, and quarterfinal/semifinal are tested before the generic "final"
// substring, which would otherwise misfire inside "quarterfinal".
func NormalizeRound(label string) Round {
	text := strings.ToLower(strings.TrimSpace(label))
	if text == "" {
		return RoundUnknown
	}

	if strings.Contains(text, "tiebreak") {
		return RoundTiebreaker
	}

	upper := strings.Contains(text, "upper bracket") || strings.Contains(text, "winner bracket") || strings.Contains(text, "winners' bracket")
	lower := strings.Contains(text, "lower bracket") || strings.Contains(text, "loser bracket") || strings.Contains(text, "losers' bracket") || strings.Contains(text, "elimination bracket")

	switch {
	case upper:
		switch {
		case strings.Contains(text, "quarter"):
			return RoundUpperBracketQF
		case strings.Contains(text, "semi"):
			return RoundUpperBracketSF
		case strings.Contains(text, "final"):
			return RoundUpperBracketFinal
		case strings.Contains(text, "round 1") || strings.Contains(text, "round one"):
			return RoundUpperBracketR1
		default:
			return RoundUpperBracketR1
		}
	case lower:
		switch {
		case strings.Contains(text, "quarter"):
			return RoundLowerBracketQF
		case strings.Contains(text, "semi"):
			return RoundLowerBracketSF
		case strings.Contains(text, "final"):
			return RoundLowerBracketFinal
		case strings.Contains(text, "round 6") || strings.Contains(text, "round 5"):
			return RoundLowerBracketR5
		case strings.Contains(text, "round 4"):
			return RoundLowerBracketR4
		case strings.Contains(text, "round 3"):
			return RoundLowerBracketR3
		case strings.Contains(text, "round 2"):
			return RoundLowerBracketR2
		default:
			return RoundLowerBracketR1
		}
	}

	switch {
	case strings.Contains(text, "grand final"):
		return RoundGrandFinal
	case strings.Contains(text, "quarter"):
		return RoundQuarterfinal
	case strings.Contains(text, "semi"):
		return RoundSemifinal
	case strings.Contains(text, "third place") || strings.Contains(text, "3rd place") || strings.Contains(text, "bronze"):
		return RoundThirdPlace
	case strings.Contains(text, "final"):
		return RoundGrandFinal
	case strings.Contains(text, "group") || strings.Contains(text, "round "):
		return RoundGroup
	default:
		return RoundUnknown
	}
}

// InferSeriesFormat prefers an explicit best-of value; absent that, the
// number of games observed in the series is the heuristic.
func InferSeriesFormat(explicitBestOf int, gameCount int) SeriesFormat {
	switch explicitBestOf {
	case 1:
		return SeriesBo1
	case 2:
		return SeriesBo2
	case 3:
		return SeriesBo3
	case 5:
		return SeriesBo5
	}

	switch {
	case gameCount == 1:
		return SeriesBo1
	case gameCount == 2:
		return SeriesBo2
	default:
		return SeriesBo3
	}
}

// Mapping accumulates match classifications for one tournament. An id
// mapped by an earlier strategy is never remapped by a later one.
type Mapping struct {
	byID  map[int64]MatchInfo
	order []int64
}

func NewMapping() *Mapping {
	return &Mapping{byID: make(map[int64]MatchInfo)}
}

// Add records info for its match id unless the id is already mapped.
// Returns true when the entry was stored.
func (m *Mapping) Add(info MatchInfo) bool {
	if info.MatchID <= 0 {
		return false
	}
	if _, exists := m.byID[info.MatchID]; exists {
		return false
	}
	m.byID[info.MatchID] = info
	m.order = append(m.order, info.MatchID)
	return true
}

func (m *Mapping) Get(matchID int64) (MatchInfo, bool) {
	info, ok := m.byID[matchID]
	return info, ok
}

func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byID)
}

// All returns entries in insertion order.
func (m *Mapping) All() []MatchInfo {
	out := make([]MatchInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// GroupSeries groups mapped matches into series and assigns game numbers
// by ascending match id. Series formats missing an explicit value are
// inferred from the game count and written back onto each entry.
func (m *Mapping) GroupSeries() []SeriesInfo {
	type key struct {
		pair     string
		round    Round
		substage string
	}

	grouped := make(map[key][]int64)
	keyOrder := make([]key, 0)
	for _, id := range m.order {
		info := m.byID[id]
		k := key{
			pair:     seriesPairKey(info.TeamA, info.TeamB),
			round:    info.Round,
			substage: info.Substage,
		}
		if _, seen := grouped[k]; !seen {
			keyOrder = append(keyOrder, k)
		}
		grouped[k] = append(grouped[k], id)
	}

	out := make([]SeriesInfo, 0, len(keyOrder))
	for _, k := range keyOrder {
		ids := grouped[k]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		first := m.byID[ids[0]]
		format := first.Series
		if format == "" {
			format = InferSeriesFormat(0, len(ids))
		}

		for game, id := range ids {
			info := m.byID[id]
			info.GameNumber = game + 1
			if info.Series == "" {
				info.Series = format
			}
			m.byID[id] = info
		}

		out = append(out, SeriesInfo{
			TeamA:    first.TeamA,
			TeamB:    first.TeamB,
			Round:    first.Round,
			Substage: first.Substage,
			Series:   format,
			MatchIDs: ids,
		})
	}

	return out
}

func seriesPairKey(teamA, teamB string) string {
	a := strings.ToLower(strings.TrimSpace(teamA))
	b := strings.ToLower(strings.TrimSpace(teamB))
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
