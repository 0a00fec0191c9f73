package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
	"github.com/avdeenkov/tourneysync/internal/markup"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

const infoboxTemplateName = "Infobox league"

// WikitextFetcher is the slice of the wiki client the extractors need.
type WikitextFetcher interface {
	FetchWikitext(ctx context.Context, pageName string) (string, error)
}

// InfoboxExtractor projects a tournament metadata record out of a page's
// infobox template.
type InfoboxExtractor struct {
	wiki      WikitextFetcher
	logger    *logging.Logger
	validate  *validator.Validate
	urlPrefix string
}

func NewInfoboxExtractor(wiki WikitextFetcher, urlPrefix string, logger *logging.Logger) *InfoboxExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	urlPrefix = strings.TrimSpace(urlPrefix)
	if urlPrefix != "" && !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &InfoboxExtractor{
		wiki:      wiki,
		logger:    logger,
		validate:  validator.New(),
		urlPrefix: urlPrefix,
	}
}

// Extract parses the page's infobox. A page without an infobox is a parse
// miss, reported through the found flag rather than an error. The error
// return covers metadata that fails validation.
func (e *InfoboxExtractor) Extract(ctx context.Context, pageName, wikitext string) (tournament.Tournament, bool, error) {
	inv, ok := markup.ParseNamedInvocation(wikitext, infoboxTemplateName)
	if !ok {
		return tournament.Tournament{}, false, nil
	}

	out := tournament.Tournament{
		PageName:   strings.TrimSpace(pageName),
		Name:       markup.Sanitize(inv.Get("name")),
		Tier:       tournament.NormalizeTier(markup.Sanitize(inv.Get("liquipediatier"))),
		ValveTier:  markup.Sanitize(inv.Get("valvetier")),
		Location:   markup.Sanitize(inv.Get("location")),
		Venue:      markup.Sanitize(inv.Get("venue")),
		FormatText: markup.Sanitize(inv.Get("format")),
		Extra:      map[string]string{},
	}
	if out.Name == "" {
		out.Name = pageBaseName(pageName)
	}
	if e.urlPrefix != "" && out.PageName != "" {
		out.SourceURL = e.urlPrefix + strings.ReplaceAll(out.PageName, " ", "_")
	}

	out.StartDate = parseWikiDate(markup.Sanitize(inv.Get("sdate")))
	out.EndDate = parseWikiDate(markup.Sanitize(inv.Get("edate")))

	if id := parseLeagueID(inv); id > 0 {
		out.LeagueID = &id
	}

	e.extractPrizePool(ctx, inv, &out)
	e.collectExtras(inv, &out)

	if err := e.validate.Struct(out); err != nil {
		return tournament.Tournament{}, true, fmt.Errorf("validate tournament metadata for %q: %w", pageName, err)
	}
	return out, true, nil
}

// The raw prize-pool value is kept unsanitized: it may be a cross-page
// transclusion that a second fetch has to follow.
func (e *InfoboxExtractor) extractPrizePool(ctx context.Context, inv *markup.Invocation, out *tournament.Tournament) {
	raw := strings.TrimSpace(inv.Get("prizepoolusd"))
	if raw == "" {
		raw = strings.TrimSpace(inv.Get("prizepool"))
	}
	out.PrizePoolRaw = raw
	if raw == "" {
		return
	}

	if amount, ok := parseUSDAmount(markup.Sanitize(raw)); ok {
		out.PrizePoolUSD = &amount
		return
	}

	page, ok := transclusionTarget(raw)
	if !ok || e.wiki == nil {
		return
	}

	// Best effort: a failed resolution leaves the numeric pool unset
	// without failing the extraction.
	body, err := e.wiki.FetchWikitext(ctx, page)
	if err != nil {
		e.logger.WarnContext(ctx, "prize pool transclusion fetch failed", "page", page, "error", err)
		return
	}
	if amount, ok := parseUSDAmount(markup.Sanitize(body)); ok {
		out.PrizePoolUSD = &amount
	}
}

func (e *InfoboxExtractor) collectExtras(inv *markup.Invocation, out *tournament.Tournament) {
	known := map[string]struct{}{
		"name": {}, "liquipediatier": {}, "valvetier": {}, "location": {},
		"venue": {}, "format": {}, "sdate": {}, "edate": {},
		"prizepool": {}, "prizepoolusd": {}, "leagueid": {}, "liagueid": {},
	}
	for _, field := range inv.Fields {
		key := strings.ToLower(field.Key)
		if _, skip := known[key]; skip {
			continue
		}
		value := markup.Sanitize(field.Value)
		if value == "" {
			continue
		}
		out.Extra[key] = value
	}
}

// parseLeagueID accepts both the canonical key and the misspelled variant
// that older pages carry.
func parseLeagueID(inv *markup.Invocation) int64 {
	for _, key := range []string{"leagueid", "liagueid"} {
		raw := markup.Sanitize(inv.Get(key))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && id > 0 {
			return id
		}
	}
	return 0
}

// transclusionTarget reports the referenced page when the raw value is a
// single cross-page transclusion like {{Tournament/Prize pool}} or
// {{:Some Page}}.
func transclusionTarget(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{{") || !strings.HasSuffix(raw, "}}") {
		return "", false
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "{{"), "}}")
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	name := inner
	if idx := strings.IndexByte(inner, '|'); idx >= 0 {
		name = inner[:idx]
	}
	name = strings.TrimSpace(name)

	switch {
	case strings.HasPrefix(name, ":"):
		return strings.TrimSpace(strings.TrimPrefix(name, ":")), true
	case strings.Contains(name, "/"):
		return name, true
	default:
		return "", false
	}
}

// parseUSDAmount reads a whole-dollar amount out of values like
// "$3,380,455" or "US$1,000,000.50". Cents are dropped. A magnitude
// suffix ("1.5 million") means the literal digits are not the amount,
// so the value stays unset rather than truncated to a wrong number.
func parseUSDAmount(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	for _, suffix := range []string{"USD", "usd"} {
		value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
	}
	if value == "" {
		return 0, false
	}

	var digits strings.Builder
	seen := false
	inFraction := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			if !inFraction {
				digits.WriteRune(r)
			}
			seen = true
		case r == ',' || r == '$' || r == ' ':
			// Grouping and currency noise.
		case r == '.':
			if !seen {
				return 0, false
			}
			// Cents are dropped; whole dollars are enough.
			inFraction = true
		default:
			if seen {
				return 0, false
			}
			// Currency code prefix like "US$".
		}
	}
	if !seen {
		return 0, false
	}
	amount, err := strconv.ParseInt(digits.String(), 10, 64)
	return amount, err == nil && amount > 0
}

var wikiDateLayouts = []string{
	"2006-01-02",
	"2006-01-2",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseWikiDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range wikiDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}

func pageBaseName(pageName string) string {
	pageName = strings.TrimSpace(pageName)
	if idx := strings.LastIndexByte(pageName, '/'); idx >= 0 {
		return strings.TrimSpace(pageName[idx+1:])
	}
	return pageName
}
