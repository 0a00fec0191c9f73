package extract

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/avdeenkov/tourneysync/internal/domain/roster"
	"github.com/avdeenkov/tourneysync/internal/markup"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

const rosterTemplateName = "TeamCard"

const (
	maxStarters    = 5
	maxSubstitutes = 3
)

// RosterExtractor pulls one participant record per roster-template block
// on a tournament page.
type RosterExtractor struct {
	logger *logging.Logger
}

func NewRosterExtractor(logger *logging.Logger) *RosterExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RosterExtractor{logger: logger}
}

// Extract returns participants in page order, one per distinct team name.
// Blocks without a team name are skipped. Parsing is CPU-bound string
// work, so the blocks are handled in parallel; page order is preserved by
// index.
func (e *RosterExtractor) Extract(wikitext string) []roster.Participant {
	templates := markup.FindAllTemplates(wikitext, rosterTemplateName)
	if len(templates) == 0 {
		return nil
	}

	parsed := iter.Map(templates, func(tpl *markup.Template) roster.Participant {
		return parseParticipant(*tpl)
	})

	out := make([]roster.Participant, 0, len(parsed))
	seen := make(map[string]struct{}, len(parsed))
	for _, participant := range parsed {
		key := roster.NormalizeTeamKey(participant.TeamName)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			e.logger.Warn("duplicate roster block for team, keeping first", "team", participant.TeamName)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, participant)
	}
	return out
}

func parseParticipant(tpl markup.Template) roster.Participant {
	inv := markup.ParseInvocation(tpl)

	teamName := markup.Sanitize(inv.Get("team"))
	if teamName == "" {
		teamName = markup.Sanitize(inv.Get("1"))
	}

	out := roster.Participant{
		TeamName:  teamName,
		Coach:     markup.Sanitize(firstValue(inv, "coach", "c")),
		Qualifier: cleanQualifier(inv.Get("qualifier")),
		Placement: markup.Sanitize(firstValue(inv, "placement", "place")),
		Notes:     cleanNotes(firstValue(inv, "notes", "note")),
	}

	for slot := 1; slot <= maxStarters; slot++ {
		nickname := markup.Sanitize(inv.Get(fmt.Sprintf("p%d", slot)))
		if nickname == "" {
			continue
		}
		out.Players = append(out.Players, roster.PlayerSlot{
			Nickname: nickname,
			Position: slot,
			Country:  markup.Sanitize(inv.Get(fmt.Sprintf("p%dflag", slot))),
		})
	}

	for slot := 1; slot <= maxSubstitutes; slot++ {
		nickname := markup.Sanitize(firstValue(inv, fmt.Sprintf("s%d", slot), fmt.Sprintf("sub%d", slot)))
		if nickname == "" {
			continue
		}
		out.Players = append(out.Players, roster.PlayerSlot{
			Nickname: nickname,
			Position: maxStarters + slot,
			IsSub:    true,
			Country:  markup.Sanitize(firstValue(inv, fmt.Sprintf("s%dflag", slot), fmt.Sprintf("sub%dflag", slot))),
		})
	}

	return out
}

func firstValue(inv *markup.Invocation, keys ...string) string {
	for _, key := range keys {
		if value := inv.Get(key); strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// cleanQualifier resolves self-referential relative links. A piped link
// already sanitizes to its display text; a bare relative link sanitizes
// to a "/Sub Page" path, which reads better without the slash.
func cleanQualifier(raw string) string {
	value := markup.Sanitize(raw)
	value = strings.TrimSpace(strings.TrimPrefix(value, "/"))
	return value
}

// cleanNotes drops citation footnotes wholesale before the generic
// sanitize pass: reference bodies carry URLs and dates, not prose.
func cleanNotes(raw string) string {
	return markup.Sanitize(stripRefTags(raw))
}

func stripRefTags(text string) string {
	for {
		lowered := strings.ToLower(text)
		start := strings.Index(lowered, "<ref")
		if start < 0 {
			return text
		}

		openEnd := strings.IndexByte(text[start:], '>')
		if openEnd < 0 {
			return text[:start]
		}
		openEnd += start + 1

		// Self-closing <ref name="x"/> has no body.
		if strings.HasSuffix(strings.TrimSpace(text[start:openEnd]), "/>") {
			text = text[:start] + text[openEnd:]
			continue
		}

		closeIdx := strings.Index(lowered[openEnd:], "</ref>")
		if closeIdx < 0 {
			return text[:start]
		}
		text = text[:start] + text[openEnd+closeIdx+len("</ref>"):]
	}
}
