package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avdeenkov/tourneysync/internal/extract"
	"github.com/avdeenkov/tourneysync/internal/infrastructure/repository/memory"
)

const exampleCupWikitext = `{{Infobox league
|name=Example Cup
|liquipediatier=3
}}`

func newBatchFixture(wiki *fakeWiki) (*BatchService, *fakeMetadata) {
	meta := &fakeMetadata{meta: testMeta(nil), found: true}
	importer := NewImportService(
		wiki, &fakeStats{}, meta,
		&fakeRosters{participants: testParticipants()},
		&fakeStages{}, nil,
		memory.NewTournamentRepository(), memory.NewRosterRepository(), memory.NewMatchRepository(),
		2, nil,
	)
	return NewBatchService(importer, wiki, 0, nil), meta
}

func TestImportSeries(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{wikitext: map[string]string{
		"Example Cup":   exampleCupWikitext,
		"Example Cup 2": exampleCupWikitext,
	}}
	batch, _ := newBatchFixture(wiki)

	result, err := batch.ImportSeries(context.Background(), []string{"Example Cup", "Example Cup 2"}, 0, ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("ImportSeries() error = %v", err)
	}
	if result.Imported != 2 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.HasFailures() {
		t.Fatal("HasFailures() = true on a clean run")
	}
}

func TestImportSeriesIsolatesFailures(t *testing.T) {
	t.Parallel()

	// "Bad Cup" has no infobox, so its import fails; "Good Cup" must
	// still land.
	wiki := &fakeWiki{wikitext: map[string]string{
		"Good Cup": exampleCupWikitext,
		"Bad Cup":  "just prose, no templates",
	}}
	importer := NewImportService(
		wiki, &fakeStats{},
		extract.NewInfoboxExtractor(wiki, "", nil),
		extract.NewRosterExtractor(nil),
		&fakeStages{}, nil,
		memory.NewTournamentRepository(), memory.NewRosterRepository(), memory.NewMatchRepository(),
		2, nil,
	)
	batch := NewBatchService(importer, wiki, 0, nil)

	result, err := batch.ImportSeries(context.Background(), []string{"Good Cup", "Bad Cup"}, 0, ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("ImportSeries() error = %v", err)
	}
	if result.Imported != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v, want one import and one isolated failure", result)
	}
	if !result.HasFailures() {
		t.Fatal("HasFailures() = false with a failed item")
	}
}

func TestImportSeriesLimit(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{wikitext: map[string]string{"A": exampleCupWikitext, "B": exampleCupWikitext, "C": exampleCupWikitext}}
	batch, _ := newBatchFixture(wiki)

	result, err := batch.ImportSeries(context.Background(), []string{"A", "B", "C"}, 2, ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("ImportSeries() error = %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(result.Results))
	}
}

func TestImportSeriesRejectsEmptyList(t *testing.T) {
	t.Parallel()

	batch, _ := newBatchFixture(&fakeWiki{})
	if _, err := batch.ImportSeries(context.Background(), []string{" ", ""}, 0, ImportOptions{}); err == nil {
		t.Fatal("expected error for empty page list")
	}
}

func TestImportByTierYearFiltersMembers(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{
		wikitext: map[string]string{
			"The International 2023": exampleCupWikitext,
			"Riyadh Masters 2023":    exampleCupWikitext,
		},
		categories: map[string][]string{
			"Tier 1 Tournaments": {
				"The International 2023",
				"Riyadh Masters 2023",
				"ESL One Birmingham 2024",
			},
		},
	}
	batch, _ := newBatchFixture(wiki)

	result, err := batch.ImportByTierYear(context.Background(), "1", 2023, 0, ImportOptions{Force: true})
	if err != nil {
		t.Fatalf("ImportByTierYear() error = %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("len(Results) = %d, want only 2023 pages", len(result.Results))
	}
	if result.Imported != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestImportByTierYearValidatesInput(t *testing.T) {
	t.Parallel()

	batch, _ := newBatchFixture(&fakeWiki{})

	if _, err := batch.ImportByTierYear(context.Background(), "", 2023, 0, ImportOptions{}); err == nil {
		t.Fatal("expected error for empty tier")
	}
	if _, err := batch.ImportByTierYear(context.Background(), "1", 1999, 0, ImportOptions{}); err == nil {
		t.Fatal("expected error for out-of-range year")
	}
}

func TestBatchInterItemDelay(t *testing.T) {
	t.Parallel()

	wiki := &fakeWiki{wikitext: map[string]string{"A": exampleCupWikitext, "B": exampleCupWikitext}}
	meta := &fakeMetadata{meta: testMeta(nil), found: true}
	importer := NewImportService(
		wiki, &fakeStats{}, meta,
		&fakeRosters{}, &fakeStages{}, nil,
		memory.NewTournamentRepository(), memory.NewRosterRepository(), memory.NewMatchRepository(),
		2, nil,
	)
	batch := NewBatchService(importer, wiki, 5*time.Second, nil)

	var slept []time.Duration
	batch.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := batch.ImportSeries(context.Background(), []string{"A", "B"}, 0, ImportOptions{Force: true}); err != nil {
		t.Fatalf("ImportSeries() error = %v", err)
	}
	// One delay between two items, none before the first.
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("slept = %v, want one 5s delay", slept)
	}
}

func TestEndToEndExampleCupWithoutLeagueID(t *testing.T) {
	t.Parallel()

	// Full pipeline with the real extractors: an infobox without a
	// league id must import cleanly and skip match import entirely.
	page := `{{Infobox league
|name=Example Cup
|liquipediatier=3
|prizepoolusd=10,000
}}
{{TeamCard
|team=Team Spirit
|p1=Yatoro
|p2=Larl
}}
{{TeamCard
|team=Gaimin Gladiators
|p1=Quinn
}}`
	wiki := &fakeWiki{wikitext: map[string]string{"Example Cup": page}}
	stats := &fakeStats{matches: []ExternalMatch{{ID: 1, RadiantTeamID: 1, RadiantTeamName: "A", DireTeamID: 2, DireTeamName: "B"}}}

	tournamentRepo := memory.NewTournamentRepository()
	matchRepo := memory.NewMatchRepository()
	importer := NewImportService(
		wiki, stats,
		extract.NewInfoboxExtractor(wiki, "", nil),
		extract.NewRosterExtractor(nil),
		extract.NewStageMapper(wiki, nil), nil,
		tournamentRepo, memory.NewRosterRepository(), matchRepo,
		2, nil,
	)

	result, err := importer.ImportTournament(context.Background(), "Example Cup", ImportOptions{})
	if err != nil {
		t.Fatalf("ImportTournament() error = %v", err)
	}
	if !result.Success || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want clean success", result)
	}
	if result.TeamsWritten != 2 || result.PlayersWritten != 3 {
		t.Fatalf("counts = %d/%d, want 2 teams and 3 players", result.TeamsWritten, result.PlayersWritten)
	}
	if result.MatchesWritten != 0 || stats.calls != 0 {
		t.Fatalf("match import must be skipped without a league id: written=%d calls=%d", result.MatchesWritten, stats.calls)
	}

	stored, ok := tournamentRepo.Get("Example Cup")
	if !ok {
		t.Fatal("tournament not stored")
	}
	if stored.LeagueID != nil {
		t.Fatalf("LeagueID = %v, want nil", stored.LeagueID)
	}
	if stored.PrizePoolUSD == nil || *stored.PrizePoolUSD != 10000 {
		t.Fatalf("PrizePoolUSD = %v, want 10000", stored.PrizePoolUSD)
	}
}
