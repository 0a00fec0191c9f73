package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avdeenkov/tourneysync/internal/domain/stage"
	"github.com/avdeenkov/tourneysync/internal/markup"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

// StageSource is the slice of the wiki client the stage mapper needs.
type StageSource interface {
	FetchWikitext(ctx context.Context, pageName string) (string, error)
	FetchRenderedHTML(ctx context.Context, pageName string) (string, error)
}

type subPage struct {
	suffix string
	stage  stage.Stage
}

// Primary sub-pages, then alternate name variants probed only when the
// primary names yield nothing anywhere.
var (
	primarySubPages = []subPage{
		{suffix: "/Group Stage", stage: stage.StageGroup},
		{suffix: "/Main Event", stage: stage.StagePlayoffs},
	}
	alternateSubPages = []subPage{
		{suffix: "/Groups", stage: stage.StageGroup},
		{suffix: "/Round Robin", stage: stage.StageGroup},
		{suffix: "/Playoffs", stage: stage.StagePlayoffs},
		{suffix: "/Bracket", stage: stage.StagePlayoffs},
		{suffix: "/Knockout Stage", stage: stage.StagePlayoffs},
		{suffix: "", stage: stage.StagePlayoffs},
	}
)

// StageMapper recovers a match id to stage/round mapping for one
// tournament, trying structured wikitext first, then rendered HTML, then
// alternate sub-page names. Strategies only add to the mapping; an id
// found by an earlier strategy is never remapped.
type StageMapper struct {
	wiki   StageSource
	logger *logging.Logger
}

func NewStageMapper(wiki StageSource, logger *logging.Logger) *StageMapper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StageMapper{wiki: wiki, logger: logger}
}

func (m *StageMapper) MapTournament(ctx context.Context, pageName string) *stage.Mapping {
	mapping := stage.NewMapping()

	m.mapFromWikitext(ctx, pageName, primarySubPages, mapping)

	if mapping.Len() == 0 {
		m.mapFromHTML(ctx, pageName, primarySubPages, mapping)
	}

	if mapping.Len() == 0 {
		m.logger.InfoContext(ctx, "probing alternate sub-page names", "page", pageName)
		m.mapFromWikitext(ctx, pageName, alternateSubPages, mapping)
		if mapping.Len() == 0 {
			m.mapFromHTML(ctx, pageName, alternateSubPages, mapping)
		}
	}

	mapping.GroupSeries()
	return mapping
}

// Every sub-page fetch is independently recovered: a missing or broken
// page logs and moves on, it never aborts the tournament's mapping.
func (m *StageMapper) mapFromWikitext(ctx context.Context, pageName string, pages []subPage, mapping *stage.Mapping) {
	for _, sub := range pages {
		page := pageName + sub.suffix
		text, err := m.wiki.FetchWikitext(ctx, page)
		if err != nil {
			m.logger.WarnContext(ctx, "stage sub-page fetch failed", "page", page, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		added := 0
		added += m.collectMatchlists(text, sub.stage, page, mapping)
		added += m.collectBrackets(text, sub.stage, page, mapping)
		if sub.stage == stage.StageGroup {
			added += m.collectTiebreakers(text, page, mapping)
		}
		m.logger.DebugContext(ctx, "structured stage scan complete", "page", page, "matches_added", added)
	}
}

// collectMatchlists handles the list-of-matches shape: a Matchlist
// template whose M1..Mn fields each nest one Match template.
func (m *StageMapper) collectMatchlists(text string, pageStage stage.Stage, pageSource string, mapping *stage.Mapping) int {
	added := 0
	for _, list := range markup.FindAllTemplates(text, "Matchlist") {
		inv := markup.ParseInvocation(list)
		substage := markup.Sanitize(inv.Get("title"))

		round := stage.RoundGroup
		if pageStage == stage.StagePlayoffs {
			round = stage.NormalizeRound(substage)
		}

		for _, match := range markup.FindAllTemplates(list.Body, "Match") {
			added += addMatchTemplate(match, pageStage, substage, round, pageSource, mapping)
		}
	}
	return added
}

// collectBrackets handles bracket templates. Round identity comes from
// free-text comments preceding each match slot; a slot with no preceding
// comment keeps round unknown rather than failing.
func (m *StageMapper) collectBrackets(text string, pageStage stage.Stage, pageSource string, mapping *stage.Mapping) int {
	added := 0
	for _, bracket := range markup.FindAllTemplates(text, "Bracket") {
		for _, slot := range scanBracketSlots(bracket.Body) {
			substage := strings.TrimSpace(slot.comment)
			round := stage.NormalizeRound(slot.comment)
			added += addMatchTemplate(slot.match, pageStage, substage, round, pageSource, mapping)
		}
	}
	return added
}

// collectTiebreakers finds an elimination sub-bracket embedded in the
// group-stage page under a tiebreaker section heading.
func (m *StageMapper) collectTiebreakers(text string, pageSource string, mapping *stage.Mapping) int {
	section, ok := sectionBody(text, "tiebreak")
	if !ok {
		return 0
	}

	added := 0
	for _, match := range markup.FindAllTemplates(section, "Match") {
		added += addMatchTemplate(match, stage.StageGroup, "Tiebreaker", stage.RoundTiebreaker, pageSource, mapping)
	}
	return added
}

func addMatchTemplate(tpl markup.Template, pageStage stage.Stage, substage string, round stage.Round, pageSource string, mapping *stage.Mapping) int {
	inv := markup.ParseInvocation(tpl)
	ids := matchIDs(inv)
	if len(ids) == 0 {
		return 0
	}

	teamA, teamB := opponentNames(inv)
	format := explicitSeriesFormat(inv)

	added := 0
	for _, id := range ids {
		stored := mapping.Add(stage.MatchInfo{
			MatchID:    id,
			Stage:      pageStage,
			Substage:   substage,
			Round:      round,
			Series:     format,
			TeamA:      teamA,
			TeamB:      teamB,
			PageSource: pageSource,
		})
		if stored {
			added++
		}
	}
	return added
}

// matchIDs collects the numeric statistics-service ids a match template
// carries, under the matchid / matchidN key convention.
func matchIDs(inv *markup.Invocation) []int64 {
	var out []int64
	appendID := func(raw string) {
		raw = markup.Sanitize(raw)
		if raw == "" {
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && id > 0 {
			out = append(out, id)
		}
	}

	appendID(inv.Get("matchid"))
	for i := 1; i <= 9; i++ {
		appendID(inv.Get(fmt.Sprintf("matchid%d", i)))
	}
	return out
}

func opponentNames(inv *markup.Invocation) (string, string) {
	return opponentName(firstValue(inv, "opponent1", "team1")),
		opponentName(firstValue(inv, "opponent2", "team2"))
}

// opponentName unwraps a nested opponent template; a plain string value
// is sanitized as-is.
func opponentName(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, name := range []string{"TeamOpponent", "Team"} {
		if nested, ok := markup.ParseNamedInvocation(raw, name); ok {
			if value := markup.Sanitize(firstValue(nested, "1", "team")); value != "" {
				return value
			}
		}
	}
	return markup.Sanitize(raw)
}

func explicitSeriesFormat(inv *markup.Invocation) stage.SeriesFormat {
	raw := markup.Sanitize(inv.Get("bestof"))
	if raw == "" {
		return ""
	}
	bestOf, err := strconv.Atoi(raw)
	if err != nil {
		return ""
	}
	switch bestOf {
	case 1:
		return stage.SeriesBo1
	case 2:
		return stage.SeriesBo2
	case 3:
		return stage.SeriesBo3
	case 5:
		return stage.SeriesBo5
	default:
		return ""
	}
}

type bracketSlot struct {
	comment string
	match   markup.Template
}

// scanBracketSlots walks a bracket body in document order, pairing each
// nested Match template with the closest preceding HTML comment.
func scanBracketSlots(body string) []bracketSlot {
	var out []bracketSlot
	comment := ""
	pos := 0
	for pos < len(body) {
		commentStart := strings.Index(body[pos:], "<!--")
		matchStart := indexOfTemplate(body, "Match", pos)

		if matchStart < 0 {
			return out
		}
		if commentStart >= 0 && pos+commentStart < matchStart {
			start := pos + commentStart + len("<!--")
			end := strings.Index(body[start:], "-->")
			if end < 0 {
				return out
			}
			comment = strings.TrimSpace(body[start : start+end])
			pos = start + end + len("-->")
			continue
		}

		tpl, endPos, ok := templateAt(body, "Match", matchStart)
		if !ok {
			return out
		}
		out = append(out, bracketSlot{comment: comment, match: tpl})
		pos = endPos
	}
	return out
}

func indexOfTemplate(text, name string, offset int) int {
	remaining := text[offset:]
	templates := markup.FindAllTemplates(remaining, name)
	if len(templates) == 0 {
		return -1
	}
	idx := strings.Index(remaining, templates[0].Span)
	if idx < 0 {
		return -1
	}
	return offset + idx
}

func templateAt(text, name string, start int) (markup.Template, int, bool) {
	tpl, ok := markup.FindTemplate(text[start:], name)
	if !ok {
		return markup.Template{}, 0, false
	}
	idx := strings.Index(text[start:], tpl.Span)
	if idx < 0 {
		return markup.Template{}, 0, false
	}
	return tpl, start + idx + len(tpl.Span), true
}

// sectionBody returns the text from a == heading == whose title contains
// needle (case-insensitive) up to the next heading of any level.
func sectionBody(text, needle string) (string, bool) {
	lower := strings.ToLower(text)
	needle = strings.ToLower(needle)

	pos := 0
	for pos < len(lower) {
		start := strings.Index(lower[pos:], "==")
		if start < 0 {
			return "", false
		}
		start += pos
		lineEnd := strings.IndexByte(lower[start:], '\n')
		if lineEnd < 0 {
			lineEnd = len(lower) - start
		}
		heading := lower[start : start+lineEnd]
		if strings.Contains(heading, needle) {
			bodyStart := start + lineEnd
			next := strings.Index(lower[bodyStart:], "\n==")
			if next < 0 {
				return text[bodyStart:], true
			}
			return text[bodyStart : bodyStart+next], true
		}
		pos = start + lineEnd
	}
	return "", false
}
