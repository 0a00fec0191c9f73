package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avdeenkov/tourneysync/internal/domain/match"
	"github.com/avdeenkov/tourneysync/internal/domain/roster"
	"github.com/avdeenkov/tourneysync/internal/domain/stage"
	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

// WikiProvider is the wiki-source surface the import pipeline consumes.
// Missing pages come back empty, never as errors.
type WikiProvider interface {
	FetchWikitext(ctx context.Context, pageName string) (string, error)
	FetchRenderedHTML(ctx context.Context, pageName string) (string, error)
	FetchPageImageNames(ctx context.Context, pageName string) ([]string, error)
	ResolveImageURL(ctx context.Context, imageName string) (string, error)
	FetchCategoryMembers(ctx context.Context, categoryName string, limit int) ([]string, error)
}

// StatsProvider is the statistics-service surface.
type StatsProvider interface {
	FetchLeagueMatches(ctx context.Context, leagueID int64, take, skip int) ([]ExternalMatch, error)
	FetchLeagueStructure(ctx context.Context, leagueID int64) ([]ExternalNodeGroup, error)
}

// ExternalMatch is one match row from the statistics service before
// identity resolution.
type ExternalMatch struct {
	ID              int64
	RadiantTeamID   int64
	RadiantTeamName string
	DireTeamID      int64
	DireTeamName    string
	DidRadiantWin   bool
	StartDateTime   *time.Time
	SeriesID        *int64
}

// ExternalNodeGroup is one group/bracket section of a league's structure
// with the statistics-service team ids seeded into it.
type ExternalNodeGroup struct {
	Name    string
	TeamIDs []int64
}

// MetadataExtractor projects tournament metadata from page wikitext.
type MetadataExtractor interface {
	Extract(ctx context.Context, pageName, wikitext string) (tournament.Tournament, bool, error)
}

// ParticipantExtractor pulls roster blocks out of page wikitext.
type ParticipantExtractor interface {
	Extract(wikitext string) []roster.Participant
}

// StageResolver recovers the match id to stage/round mapping for one
// tournament.
type StageResolver interface {
	MapTournament(ctx context.Context, pageName string) *stage.Mapping
}

// LogoUploader mirrors a wiki-hosted logo into owned object storage and
// returns the public URL.
type LogoUploader interface {
	UploadFromURL(ctx context.Context, sourceURL, objectKey string) (string, error)
}

// ImportOptions tune one import run. The zero value performs a full
// import with writes enabled.
type ImportOptions struct {
	DryRun      bool
	SkipMatches bool
	SkipLogos   bool
	Force       bool
}

// ImportResult is the outcome of one tournament import.
type ImportResult struct {
	PageName       string
	Skipped        bool
	TeamsWritten   int
	PlayersWritten int
	MatchesWritten int
	Dropped        int
	Errors         []string
	Success        bool
}

func (r *ImportResult) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// ImportService sequences fetch, parse, map, reconcile, persist for one
// tournament.
type ImportService struct {
	wiki     WikiProvider
	stats    StatsProvider
	metadata MetadataExtractor
	rosters  ParticipantExtractor
	stages   StageResolver
	logos    LogoUploader

	tournamentRepo tournament.Repository
	rosterRepo     roster.Repository
	matchRepo      match.Repository

	pageSize int
	logger   *logging.Logger
}

func NewImportService(
	wiki WikiProvider,
	stats StatsProvider,
	metadata MetadataExtractor,
	rosters ParticipantExtractor,
	stages StageResolver,
	logos LogoUploader,
	tournamentRepo tournament.Repository,
	rosterRepo roster.Repository,
	matchRepo match.Repository,
	pageSize int,
	logger *logging.Logger,
) *ImportService {
	if logger == nil {
		logger = logging.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &ImportService{
		wiki:           wiki,
		stats:          stats,
		metadata:       metadata,
		rosters:        rosters,
		stages:         stages,
		logos:          logos,
		tournamentRepo: tournamentRepo,
		rosterRepo:     rosterRepo,
		matchRepo:      matchRepo,
		pageSize:       pageSize,
		logger:         logger,
	}
}

// ImportTournament runs the full pipeline for one tournament page. A
// write failure fails this tournament's result; extraction misses and
// unresolved identities degrade it instead.
func (s *ImportService) ImportTournament(ctx context.Context, pageName string, opts ImportOptions) (ImportResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ImportService.ImportTournament")
	defer span.End()

	result := ImportResult{PageName: strings.TrimSpace(pageName)}
	if result.PageName == "" {
		return result, fmt.Errorf("%w: page name is required", ErrInvalidInput)
	}
	pageName = result.PageName

	if !opts.Force && !opts.DryRun {
		exists, err := s.tournamentRepo.Exists(ctx, pageName)
		if err != nil {
			result.addError(err)
			return result, fmt.Errorf("existence check for %q: %w", pageName, err)
		}
		if exists {
			s.logger.InfoContext(ctx, "tournament already imported, skipping", "page", pageName)
			result.Skipped = true
			result.Success = true
			return result, nil
		}
	}

	wikitext, err := s.wiki.FetchWikitext(ctx, pageName)
	if err != nil {
		result.addError(err)
		return result, fmt.Errorf("fetch page %q: %w", pageName, err)
	}

	meta, found, err := s.metadata.Extract(ctx, pageName, wikitext)
	if err != nil {
		result.addError(err)
		return result, fmt.Errorf("extract metadata for %q: %w", pageName, err)
	}
	if !found {
		result.addError(fmt.Errorf("page %q has no tournament infobox", pageName))
		return result, fmt.Errorf("%w: page %q has no tournament infobox", ErrNotFound, pageName)
	}

	participants := s.rosters.Extract(wikitext)
	if !opts.SkipLogos && len(participants) > 0 {
		s.attachLogos(ctx, pageName, participants, opts.DryRun)
	}

	if err := s.persistTournament(ctx, meta, participants, opts.DryRun, &result); err != nil {
		result.addError(err)
		return result, err
	}

	if meta.LeagueID != nil && !opts.SkipMatches {
		if err := s.importMatches(ctx, meta, participants, opts.DryRun, &result); err != nil {
			result.addError(err)
			return result, err
		}
	} else {
		s.logger.InfoContext(ctx, "match import skipped", "page", pageName,
			"has_league_id", meta.LeagueID != nil, "skip_matches", opts.SkipMatches)
	}

	result.Success = true
	return result, nil
}

func (s *ImportService) persistTournament(ctx context.Context, meta tournament.Tournament, participants []roster.Participant, dryRun bool, result *ImportResult) error {
	if dryRun {
		s.logger.InfoContext(ctx, "dry run: would upsert tournament", "page", meta.PageName,
			"name", meta.Name, "teams", len(participants))
		result.TeamsWritten = len(participants)
		result.PlayersWritten = countPlayers(participants)
		return nil
	}

	if err := s.tournamentRepo.Upsert(ctx, meta); err != nil {
		return fmt.Errorf("upsert tournament %q: %w", meta.PageName, err)
	}
	if err := s.rosterRepo.UpsertTeams(ctx, participants); err != nil {
		return fmt.Errorf("upsert teams for %q: %w", meta.PageName, err)
	}
	if err := s.rosterRepo.ReplaceTournamentTeams(ctx, meta.ID(), participants); err != nil {
		return fmt.Errorf("replace team links for %q: %w", meta.PageName, err)
	}
	if err := s.rosterRepo.UpsertPlayers(ctx, participants); err != nil {
		return fmt.Errorf("upsert players for %q: %w", meta.PageName, err)
	}
	if err := s.rosterRepo.ReplaceTournamentPlayers(ctx, meta.ID(), participants); err != nil {
		return fmt.Errorf("replace player links for %q: %w", meta.PageName, err)
	}

	result.TeamsWritten = len(participants)
	result.PlayersWritten = countPlayers(participants)
	return nil
}

func (s *ImportService) importMatches(ctx context.Context, meta tournament.Tournament, participants []roster.Participant, dryRun bool, result *ImportResult) error {
	if s.stats == nil {
		s.logger.WarnContext(ctx, "statistics source not configured, match import skipped", "page", meta.PageName)
		return nil
	}

	summaries, err := s.fetchAllMatches(ctx, *meta.LeagueID)
	if err != nil {
		return fmt.Errorf("fetch matches league_id=%d: %w", *meta.LeagueID, err)
	}
	if len(summaries) == 0 {
		s.logger.InfoContext(ctx, "statistics service has no matches for league", "league_id", *meta.LeagueID)
		return nil
	}

	mapping := s.stages.MapTournament(ctx, meta.PageName)
	groupByTeam := s.fetchGroupAssignments(ctx, *meta.LeagueID)
	links := s.resolveTeamLinks(ctx, s.buildResolver(summaries), participants)

	matches := make([]match.Match, 0, len(summaries))
	for _, summary := range summaries {
		_, radiantOK := links[summary.RadiantTeamID]
		_, direOK := links[summary.DireTeamID]
		if !radiantOK || !direOK {
			result.Dropped++
			s.logger.WarnContext(ctx, "dropping match with unreconciled team identity",
				"match_id", summary.ID, "radiant", summary.RadiantTeamName, "dire", summary.DireTeamName)
			continue
		}

		row := match.Match{
			ID:           summary.ID,
			TournamentID: meta.ID(),
			RadiantID:    summary.RadiantTeamID,
			RadiantName:  summary.RadiantTeamName,
			DireID:       summary.DireTeamID,
			DireName:     summary.DireTeamName,
			RadiantWin:   summary.DidRadiantWin,
			StartTime:    summary.StartDateTime,
			SeriesID:     summary.SeriesID,
		}
		if info, ok := mapping.Get(summary.ID); ok {
			row.Stage = info.Stage
			row.Substage = info.Substage
			row.Round = info.Round
			row.Series = info.Series
			row.GameNumber = info.GameNumber
		} else if name, ok := groupByTeam[summary.RadiantTeamID]; ok && name != "" && groupByTeam[summary.DireTeamID] == name {
			// League structure covers only the group stage; a pair of
			// teams seeded into the same group places the match there.
			row.Stage = stage.StageGroup
			row.Substage = name
			row.Round = stage.RoundGroup
		}
		matches = append(matches, row)
	}

	if dryRun {
		s.logger.InfoContext(ctx, "dry run: would replace tournament matches",
			"page", meta.PageName, "matches", len(matches), "dropped", result.Dropped)
		result.MatchesWritten = len(matches)
		return nil
	}

	if err := s.matchRepo.ReplaceByTournament(ctx, meta.ID(), matches); err != nil {
		return fmt.Errorf("replace matches for %q: %w", meta.PageName, err)
	}
	result.MatchesWritten = len(matches)
	return nil
}

// fetchAllMatches pages through the league until a short page signals the
// end.
func (s *ImportService) fetchAllMatches(ctx context.Context, leagueID int64) ([]ExternalMatch, error) {
	var out []ExternalMatch
	for skip := 0; ; skip += s.pageSize {
		page, err := s.stats.FetchLeagueMatches(ctx, leagueID, s.pageSize, skip)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

// fetchGroupAssignments reads the league's node groups for team-to-group
// assignment. Best effort: a failure here only loses group labels on
// matches the wiki mapping missed.
func (s *ImportService) fetchGroupAssignments(ctx context.Context, leagueID int64) map[int64]string {
	groups, err := s.stats.FetchLeagueStructure(ctx, leagueID)
	if err != nil {
		s.logger.WarnContext(ctx, "league structure fetch failed", "league_id", leagueID, "error", err)
		return nil
	}

	out := make(map[int64]string)
	for _, group := range groups {
		if group.Name == "" {
			continue
		}
		for _, teamID := range group.TeamIDs {
			if _, taken := out[teamID]; !taken {
				out[teamID] = group.Name
			}
		}
	}
	return out
}

// buildResolver feeds the statistics-service team names into the identity
// ladder. The wiki roster resolves against it once per import run.
func (s *ImportService) buildResolver(summaries []ExternalMatch) *TeamIdentityResolver {
	namesByID := make(map[int64]string, len(summaries)*2)
	for _, summary := range summaries {
		if summary.RadiantTeamID > 0 {
			namesByID[summary.RadiantTeamID] = summary.RadiantTeamName
		}
		if summary.DireTeamID > 0 {
			namesByID[summary.DireTeamID] = summary.DireTeamName
		}
	}
	return NewTeamIdentityResolver(namesByID)
}

// resolveTeamLinks resolves each wiki participant to its
// statistics-service team id. The returned links gate match persistence:
// a match survives only when both of its team ids were claimed by a wiki
// participant, so teams the statistics service reports under a league but
// the wiki page never lists stay out of storage.
func (s *ImportService) resolveTeamLinks(ctx context.Context, resolver *TeamIdentityResolver, participants []roster.Participant) map[int64]string {
	links := make(map[int64]string, len(participants))
	for _, participant := range participants {
		id, ok := resolver.Resolve(participant.TeamName)
		if !ok {
			s.logger.WarnContext(ctx, "wiki team has no statistics-service counterpart",
				"team", participant.TeamName)
			continue
		}
		if prior, taken := links[id]; taken {
			s.logger.WarnContext(ctx, "two wiki teams resolved to one statistics-service id",
				"team_id", id, "kept", prior, "conflicting", participant.TeamName)
			continue
		}
		links[id] = participant.TeamName
	}
	return links
}

// attachLogos is best-effort enrichment: any failure logs and leaves the
// logo fields empty.
func (s *ImportService) attachLogos(ctx context.Context, pageName string, participants []roster.Participant, dryRun bool) {
	if s.logos == nil {
		return
	}

	imageNames, err := s.wiki.FetchPageImageNames(ctx, pageName)
	if err != nil {
		s.logger.WarnContext(ctx, "page image listing failed", "page", pageName, "error", err)
		return
	}
	if len(imageNames) == 0 {
		return
	}

	for i := range participants {
		imageName, ok := logoImageFor(participants[i].TeamName, imageNames)
		if !ok {
			continue
		}
		sourceURL, err := s.wiki.ResolveImageURL(ctx, imageName)
		if err != nil || sourceURL == "" {
			continue
		}
		if dryRun {
			s.logger.InfoContext(ctx, "dry run: would upload team logo",
				"team", participants[i].TeamName, "image", imageName)
			continue
		}

		key := "logos/" + roster.NormalizeTeamKey(participants[i].TeamName)
		publicURL, err := s.logos.UploadFromURL(ctx, sourceURL, key)
		if err != nil {
			s.logger.WarnContext(ctx, "logo upload failed", "team", participants[i].TeamName, "error", err)
			continue
		}
		participants[i].LogoURL = publicURL
	}
}

// logoImageFor matches a team name to an uploaded image by normalized
// containment; wiki logo files follow a "<Team>logo" naming habit.
func logoImageFor(teamName string, imageNames []string) (string, bool) {
	teamKey := strings.ReplaceAll(roster.NormalizeTeamKey(teamName), " ", "")
	if teamKey == "" {
		return "", false
	}
	for _, imageName := range imageNames {
		imageKey := strings.ReplaceAll(roster.NormalizeTeamKey(imageName), " ", "")
		if strings.Contains(imageKey, teamKey) && strings.Contains(imageKey, "logo") {
			return imageName, true
		}
	}
	return "", false
}

func countPlayers(participants []roster.Participant) int {
	total := 0
	for _, participant := range participants {
		total += len(participant.Players)
	}
	return total
}
