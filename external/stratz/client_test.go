package stratz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avdeenkov/tourneysync/internal/platform/cache"
)

func TestFetchLeagueMatches(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("authorization")
		_, _ = w.Write([]byte(`{"data":{"league":{"matches":[
			{"id":101,"didRadiantWin":true,"startDateTime":1700000000,"seriesId":9,
			 "radiantTeam":{"id":1,"name":"Team Spirit"},"direTeam":{"id":2,"name":"Gaimin Gladiators"}},
			{"id":102,"didRadiantWin":false,"startDateTime":0,"seriesId":null,
			 "radiantTeam":{"id":2,"name":"Gaimin Gladiators"},"direTeam":{"id":1,"name":"Team Spirit"}}
		]}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret"})

	matches, err := client.FetchLeagueMatches(context.Background(), 15728, 50, 0)
	if err != nil {
		t.Fatalf("FetchLeagueMatches() error = %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization header = %q, want bearer token", gotAuth)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}

	first := matches[0]
	if first.ID != 101 || !first.DidRadiantWin {
		t.Fatalf("unexpected first match: %+v", first)
	}
	if first.RadiantTeamName != "Team Spirit" || first.DireTeamID != 2 {
		t.Fatalf("unexpected team data: %+v", first)
	}
	if first.SeriesID == nil || *first.SeriesID != 9 {
		t.Fatalf("SeriesID = %v, want 9", first.SeriesID)
	}
	want := time.Unix(1700000000, 0).UTC()
	if first.StartDateTime == nil || !first.StartDateTime.Equal(want) {
		t.Fatalf("StartDateTime = %v, want %v", first.StartDateTime, want)
	}

	second := matches[1]
	if second.StartDateTime != nil {
		t.Fatalf("zero startDateTime should map to nil, got %v", second.StartDateTime)
	}
	if second.SeriesID != nil {
		t.Fatalf("null seriesId should map to nil, got %v", second.SeriesID)
	}
}

func TestFetchLeagueStructure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"league":{"nodeGroups":[
			{"name":"Group A","teamLeagueSeeds":[{"teamId":1},{"teamId":2}]},
			{"name":"Group B","teamLeagueSeeds":[{"teamId":3},{"teamId":0}]}
		]}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	groups, err := client.FetchLeagueStructure(context.Background(), 15728)
	if err != nil {
		t.Fatalf("FetchLeagueStructure() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Name != "Group A" || len(groups[0].TeamIDs) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if len(groups[1].TeamIDs) != 1 || groups[1].TeamIDs[0] != 3 {
		t.Fatalf("zero team ids must be dropped: %+v", groups[1])
	}
}

func TestGraphQLErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"league not found"}],"data":null}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	_, err := client.FetchLeagueMatches(context.Background(), 1, 10, 0)
	if err == nil || !strings.Contains(err.Error(), "league not found") {
		t.Fatalf("expected graphql error to surface, got %v", err)
	}
}

func TestCacheShortCircuitsRepeatedQueries(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data":{"league":{"matches":[]}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Cache:   cache.NewStore(time.Minute),
	})

	for i := 0; i < 3; i++ {
		if _, err := client.FetchLeagueMatches(context.Background(), 15728, 50, 0); err != nil {
			t.Fatalf("FetchLeagueMatches() error = %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want 1 (cache hit)", calls)
	}
}

func TestRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"league":{"matches":[{"id":7,"didRadiantWin":true,"startDateTime":0,"seriesId":null,"radiantTeam":{"id":1,"name":"A"},"direTeam":{"id":2,"name":"B"}}]}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 2})

	matches, err := client.FetchLeagueMatches(context.Background(), 15728, 50, 0)
	if err != nil {
		t.Fatalf("FetchLeagueMatches() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}
	if len(matches) != 1 || matches[0].ID != 7 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestBadRequestNotRetried(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 3})

	if _, err := client.FetchLeagueMatches(context.Background(), 15728, 50, 0); err == nil {
		t.Fatal("expected error for status 400")
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want 1 (no retry on client error)", calls)
	}
}
