package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/avdeenkov/tourneysync/internal/domain/match"
	"github.com/avdeenkov/tourneysync/internal/domain/roster"
	"github.com/avdeenkov/tourneysync/internal/domain/stage"
	"github.com/avdeenkov/tourneysync/internal/domain/tournament"
	"github.com/avdeenkov/tourneysync/internal/infrastructure/repository/memory"
)

type fakeWiki struct {
	wikitext   map[string]string
	images     map[string][]string
	imageURLs  map[string]string
	categories map[string][]string
	fetchErr   error
}

func (f *fakeWiki) FetchWikitext(_ context.Context, pageName string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return f.wikitext[pageName], nil
}

func (f *fakeWiki) FetchRenderedHTML(context.Context, string) (string, error) { return "", nil }

func (f *fakeWiki) FetchPageImageNames(_ context.Context, pageName string) ([]string, error) {
	return f.images[pageName], nil
}

func (f *fakeWiki) ResolveImageURL(_ context.Context, imageName string) (string, error) {
	return f.imageURLs[imageName], nil
}

func (f *fakeWiki) FetchCategoryMembers(_ context.Context, categoryName string, _ int) ([]string, error) {
	return f.categories[categoryName], nil
}

type fakeStats struct {
	matches []ExternalMatch
	groups  []ExternalNodeGroup
	calls   int
}

func (f *fakeStats) FetchLeagueMatches(_ context.Context, _ int64, take, skip int) ([]ExternalMatch, error) {
	f.calls++
	if skip >= len(f.matches) {
		return nil, nil
	}
	end := skip + take
	if end > len(f.matches) {
		end = len(f.matches)
	}
	return f.matches[skip:end], nil
}

func (f *fakeStats) FetchLeagueStructure(context.Context, int64) ([]ExternalNodeGroup, error) {
	return f.groups, nil
}

type fakeMetadata struct {
	meta  tournament.Tournament
	found bool
	err   error
}

func (f *fakeMetadata) Extract(context.Context, string, string) (tournament.Tournament, bool, error) {
	return f.meta, f.found, f.err
}

type fakeRosters struct{ participants []roster.Participant }

func (f *fakeRosters) Extract(string) []roster.Participant { return f.participants }

type fakeStages struct{ mapping *stage.Mapping }

func (f *fakeStages) MapTournament(context.Context, string) *stage.Mapping {
	if f.mapping == nil {
		return stage.NewMapping()
	}
	return f.mapping
}

type failingMatchRepo struct{}

func (failingMatchRepo) ReplaceByTournament(context.Context, string, []match.Match) error {
	return fmt.Errorf("disk full")
}

func leagueID(v int64) *int64 { return &v }

func testMeta(leagueRef *int64) tournament.Tournament {
	return tournament.Tournament{
		PageName: "Example Cup",
		Name:     "Example Cup",
		Tier:     "1",
		LeagueID: leagueRef,
	}
}

func testParticipants() []roster.Participant {
	return []roster.Participant{
		{TeamName: "Team Spirit", Players: []roster.PlayerSlot{
			{Nickname: "Yatoro", Position: 1}, {Nickname: "Miposhka", Position: 5},
		}},
		{TeamName: "Gaimin Gladiators", Players: []roster.PlayerSlot{
			{Nickname: "Quinn", Position: 2},
		}},
	}
}

func newTestService(wiki *fakeWiki, stats *fakeStats, meta *fakeMetadata, stages *fakeStages) (*ImportService, *memory.TournamentRepository, *memory.RosterRepository, *memory.MatchRepository) {
	tournamentRepo := memory.NewTournamentRepository()
	rosterRepo := memory.NewRosterRepository()
	matchRepo := memory.NewMatchRepository()

	service := NewImportService(
		wiki, stats, meta,
		&fakeRosters{participants: testParticipants()},
		stages, nil,
		tournamentRepo, rosterRepo, matchRepo,
		2, nil,
	)
	return service, tournamentRepo, rosterRepo, matchRepo
}

func TestImportTournamentFullRun(t *testing.T) {
	t.Parallel()

	mapping := stage.NewMapping()
	mapping.Add(stage.MatchInfo{
		MatchID: 101, Stage: stage.StagePlayoffs, Substage: "Upper Bracket Semifinals",
		Round: stage.RoundUpperBracketSF, Series: stage.SeriesBo3, GameNumber: 1,
	})

	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 101, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators", DidRadiantWin: true},
		{ID: 102, RadiantTeamID: 2, RadiantTeamName: "Gaimin Gladiators", DireTeamID: 1, DireTeamName: "Team Spirit"},
	}}

	service, tournamentRepo, rosterRepo, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{mapping: mapping},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if !result.Success || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.TeamsWritten != 2 || result.PlayersWritten != 3 || result.MatchesWritten != 2 {
		t.Fatalf("counts = %d/%d/%d, want 2/3/2", result.TeamsWritten, result.PlayersWritten, result.MatchesWritten)
	}

	if _, ok := tournamentRepo.Get("Example Cup"); !ok {
		t.Fatal("tournament not stored")
	}
	if links := rosterRepo.TeamLinks("Example Cup"); len(links) != 2 {
		t.Fatalf("team links = %v", links)
	}

	stored := matchRepo.ByTournament("Example Cup")
	if len(stored) != 2 {
		t.Fatalf("stored matches = %d, want 2", len(stored))
	}
	if stored[0].Round != stage.RoundUpperBracketSF || stored[0].RadiantID != 1 {
		t.Fatalf("unexpected first match: %+v", stored[0])
	}
	if stored[1].Round != "" && stored[1].Round != stage.RoundUnknown {
		t.Fatalf("unmapped match should stay unclassified: %+v", stored[1])
	}
}

func TestImportTournamentIdempotent(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 101, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
	}}
	service, _, rosterRepo, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	first, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("first import error = %v", err)
	}
	second, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("second import error = %v", err)
	}

	if first.TeamsWritten != second.TeamsWritten ||
		first.PlayersWritten != second.PlayersWritten ||
		first.MatchesWritten != second.MatchesWritten {
		t.Fatalf("counts differ between runs: %+v vs %+v", first, second)
	}
	if links := rosterRepo.TeamLinks("Example Cup"); len(links) != 2 {
		t.Fatalf("duplicate link rows after re-import: %v", links)
	}
	if stored := matchRepo.ByTournament("Example Cup"); len(stored) != 1 {
		t.Fatalf("duplicate match rows after re-import: %d", len(stored))
	}
}

func TestImportTournamentSkipsExisting(t *testing.T) {
	t.Parallel()

	service, tournamentRepo, _, _ := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		&fakeStats{},
		&fakeMetadata{meta: testMeta(nil), found: true},
		&fakeStages{},
	)
	if err := tournamentRepo.Upsert(context.Background(), testMeta(nil)); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if !result.Skipped || !result.Success {
		t.Fatalf("result = %+v, want skipped success", result)
	}

	forced, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("forced import error = %v", err)
	}
	if forced.Skipped {
		t.Fatal("force must bypass the existence check")
	}
}

func TestImportTournamentLeagueIDAbsentSkipsMatches(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{matches: []ExternalMatch{{ID: 1, RadiantTeamID: 1, RadiantTeamName: "A", DireTeamID: 2, DireTeamName: "B"}}}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(nil), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if !result.Success || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want clean success", result)
	}
	if result.MatchesWritten != 0 || stats.calls != 0 {
		t.Fatalf("match import ran without a league id: written=%d calls=%d", result.MatchesWritten, stats.calls)
	}
	if stored := matchRepo.ByTournament("Example Cup"); len(stored) != 0 {
		t.Fatalf("matches stored without a league id: %d", len(stored))
	}
}

func TestImportTournamentDropsUnresolvedTeams(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 101, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
		{ID: 102, RadiantTeamID: 0, RadiantTeamName: "", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
	}}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if result.Dropped != 1 || result.MatchesWritten != 1 {
		t.Fatalf("dropped=%d written=%d, want 1/1", result.Dropped, result.MatchesWritten)
	}
	if stored := matchRepo.ByTournament("Example Cup"); len(stored) != 1 || stored[0].ID != 101 {
		t.Fatalf("unexpected stored matches: %+v", stored)
	}
}

func TestImportTournamentDropsMatchesOutsideRoster(t *testing.T) {
	t.Parallel()

	// A league id can cover qualifiers whose teams never appear on the
	// tournament page. Their matches must not ride in on the stats feed.
	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 900, RadiantTeamID: 71, RadiantTeamName: "Zenith Nine", DireTeamID: 72, DireTeamName: "Orbit Kings"},
		{ID: 901, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
	}}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if result.Dropped != 1 || result.MatchesWritten != 1 {
		t.Fatalf("dropped=%d written=%d, want 1/1", result.Dropped, result.MatchesWritten)
	}

	stored := matchRepo.ByTournament("Example Cup")
	if len(stored) != 1 || stored[0].ID != 901 {
		t.Fatalf("stored matches = %+v, want only the roster pair", stored)
	}
}

func TestImportTournamentReconcilesRenamedTeams(t *testing.T) {
	t.Parallel()

	// The statistics service reports short forms; the wiki roster carries
	// the full names. The ladder's fuzzy rungs bridge them.
	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 910, RadiantTeamID: 1, RadiantTeamName: "Spirit", DireTeamID: 2, DireTeamName: "Gaimin"},
	}}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if result.Dropped != 0 || result.MatchesWritten != 1 {
		t.Fatalf("dropped=%d written=%d, want 0/1", result.Dropped, result.MatchesWritten)
	}
	if stored := matchRepo.ByTournament("Example Cup"); len(stored) != 1 || stored[0].RadiantID != 1 || stored[0].DireID != 2 {
		t.Fatalf("stored matches = %+v", stored)
	}
}

func TestImportTournamentGroupAssignmentFallback(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{
		matches: []ExternalMatch{
			{ID: 201, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
		},
		groups: []ExternalNodeGroup{{Name: "Group B", TeamIDs: []int64{1, 2}}},
	}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	if _, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{}); err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}

	stored := matchRepo.ByTournament("Example Cup")
	if len(stored) != 1 {
		t.Fatalf("stored matches = %d", len(stored))
	}
	if stored[0].Stage != stage.StageGroup || stored[0].Substage != "Group B" || stored[0].Round != stage.RoundGroup {
		t.Fatalf("league structure fallback missing: %+v", stored[0])
	}
}

func TestImportTournamentDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 101, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
	}}
	service, tournamentRepo, rosterRepo, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if !result.Success || result.TeamsWritten != 2 || result.MatchesWritten != 1 {
		t.Fatalf("dry run result = %+v", result)
	}

	if _, ok := tournamentRepo.Get("Example Cup"); ok {
		t.Fatal("dry run stored a tournament")
	}
	if len(rosterRepo.TeamLinks("Example Cup")) != 0 {
		t.Fatal("dry run stored team links")
	}
	if len(matchRepo.ByTournament("Example Cup")) != 0 {
		t.Fatal("dry run stored matches")
	}
}

func TestImportTournamentNoInfoboxFails(t *testing.T) {
	t.Parallel()

	service, _, _, _ := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		&fakeStats{},
		&fakeMetadata{found: false},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err == nil {
		t.Fatal("expected error for page without infobox")
	}
	if result.Success || len(result.Errors) == 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestImportTournamentWriteFailureIsCaptured(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{matches: []ExternalMatch{
		{ID: 101, RadiantTeamID: 1, RadiantTeamName: "Team Spirit", DireTeamID: 2, DireTeamName: "Gaimin Gladiators"},
	}}
	service := NewImportService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeRosters{},
		&fakeStages{}, nil,
		memory.NewTournamentRepository(), memory.NewRosterRepository(), failingMatchRepo{},
		2, nil,
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err == nil {
		t.Fatal("expected write failure to surface")
	}
	if result.Success {
		t.Fatal("result.Success must be false on write failure")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "disk full") {
		t.Fatalf("errors = %v", result.Errors)
	}
}

func TestImportTournamentPaginatesMatches(t *testing.T) {
	t.Parallel()

	matches := make([]ExternalMatch, 5)
	for i := range matches {
		matches[i] = ExternalMatch{
			ID: int64(1000 + i), RadiantTeamID: 1, RadiantTeamName: "Team Spirit",
			DireTeamID: 2, DireTeamName: "Gaimin Gladiators",
		}
	}
	stats := &fakeStats{matches: matches}
	service, _, _, matchRepo := newTestService(
		&fakeWiki{wikitext: map[string]string{"Example Cup": "page"}},
		stats,
		&fakeMetadata{meta: testMeta(leagueID(15728)), found: true},
		&fakeStages{},
	)

	result, err := service.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if result.MatchesWritten != 5 {
		t.Fatalf("MatchesWritten = %d, want 5", result.MatchesWritten)
	}
	// Page size 2: three full or partial pages.
	if stats.calls != 3 {
		t.Fatalf("stats calls = %d, want 3", stats.calls)
	}
	if stored := matchRepo.ByTournament("Example Cup"); len(stored) != 5 {
		t.Fatalf("stored = %d, want 5", len(stored))
	}
}
