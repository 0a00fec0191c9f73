package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avdeenkov/tourneysync/internal/domain/stage"
)

// matchLinkPattern captures match ids from outbound links to the
// third-party results site.
var matchLinkPattern = regexp.MustCompile(`dotabuff\.com/matches/(\d+)`)

// mapFromHTML is the fallback for tournaments whose pages are rendered
// from a live database and carry no inline wikitext. It anchors on
// rendered section headings and assigns every match link between two
// consecutive headings to the first heading's round.
func (m *StageMapper) mapFromHTML(ctx context.Context, pageName string, pages []subPage, mapping *stage.Mapping) {
	for _, sub := range pages {
		page := pageName + sub.suffix
		html, err := m.wiki.FetchRenderedHTML(ctx, page)
		if err != nil {
			m.logger.WarnContext(ctx, "rendered page fetch failed", "page", page, "error", err)
			continue
		}
		if strings.TrimSpace(html) == "" {
			continue
		}

		added := m.collectHTMLSections(html, sub.stage, page, mapping)
		m.logger.DebugContext(ctx, "rendered stage scan complete", "page", page, "matches_added", added)
	}
}

type htmlSection struct {
	label  string
	offset int
}

func (m *StageMapper) collectHTMLSections(html string, pageStage stage.Stage, pageSource string, mapping *stage.Mapping) int {
	sections := headingSections(html)
	if len(sections) == 0 {
		return 0
	}

	added := 0
	for i, section := range sections {
		end := len(html)
		if i+1 < len(sections) && sections[i+1].offset > section.offset {
			end = sections[i+1].offset
		}
		body := html[section.offset:end]

		round := htmlSectionRound(section.label, pageStage)
		for _, id := range matchIDsFromHTML(body) {
			stored := mapping.Add(stage.MatchInfo{
				MatchID:    id,
				Stage:      pageStage,
				Substage:   section.label,
				Round:      round,
				PageSource: pageSource,
			})
			if stored {
				added++
			}
		}
	}
	return added
}

// headingSections lists rendered section headings with their byte offset
// in the raw HTML. Section boundaries are positional: one heading's span
// runs to the next heading's offset.
func headingSections(html string) []htmlSection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []htmlSection
	doc.Find("span.mw-headline").Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Text())
		if label == "" {
			return
		}

		offset := -1
		if id, ok := sel.Attr("id"); ok && id != "" {
			offset = strings.Index(html, fmt.Sprintf(`id="%s"`, id))
		}
		if offset < 0 {
			offset = strings.Index(html, ">"+label+"<")
		}
		if offset < 0 {
			return
		}
		out = append(out, htmlSection{label: label, offset: offset})
	})
	return out
}

// htmlSectionRound classifies a rendered heading. Swiss-style group pages
// title their sections "Round N", which stays a group round rather than a
// bracket position.
func htmlSectionRound(label string, pageStage stage.Stage) stage.Round {
	if pageStage == stage.StageGroup {
		if strings.Contains(strings.ToLower(label), "tiebreak") {
			return stage.RoundTiebreaker
		}
		return stage.RoundGroup
	}
	return stage.NormalizeRound(label)
}

func matchIDsFromHTML(body string) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, group := range matchLinkPattern.FindAllStringSubmatch(body, -1) {
		id, err := strconv.ParseInt(group[1], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
