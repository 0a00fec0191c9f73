package stratz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/avdeenkov/tourneysync/internal/platform/cache"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
	"github.com/avdeenkov/tourneysync/internal/platform/ratelimit"
	"github.com/avdeenkov/tourneysync/internal/platform/resilience"
	"github.com/avdeenkov/tourneysync/internal/usecase"
)

const (
	defaultBaseURL = "https://api.stratz.com/graphql"

	// OpStats shares the limiter instance with the wiki client but keeps
	// its own budget: the statistics service meters by request count, not
	// render cost.
	OpStats ratelimit.Class = "stats_query"
)

var errStratzTransient = crerr.New("stats transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Limiter        *ratelimit.Limiter
	Cache          *cache.Store
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	limiter        *ratelimit.Limiter
	cache          *cache.Store
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     cfg.MaxRetries,
		limiter:        cfg.Limiter,
		cache:          cfg.Cache,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}
}

const leagueMatchesQuery = `query LeagueMatches($leagueId: Int!, $take: Int!, $skip: Int!) {
  league(id: $leagueId) {
    matches(request: { take: $take, skip: $skip }) {
      id
      didRadiantWin
      startDateTime
      seriesId
      radiantTeam { id name }
      direTeam { id name }
    }
  }
}`

const leagueStructureQuery = `query LeagueStructure($leagueId: Int!) {
  league(id: $leagueId) {
    nodeGroups {
      name
      teamLeagueSeeds { teamId }
    }
  }
}`

// FetchLeagueMatches returns one page of a league's matches. Callers page
// with take/skip until a short page comes back.
func (c *Client) FetchLeagueMatches(ctx context.Context, leagueID int64, take, skip int) ([]usecase.ExternalMatch, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}
	if take <= 0 {
		take = 50
	}
	if skip < 0 {
		skip = 0
	}

	variables := map[string]any{
		"leagueId": leagueID,
		"take":     take,
		"skip":     skip,
	}

	var envelope leagueMatchesEnvelope
	if err := c.doGraphQL(ctx, leagueMatchesQuery, variables, &envelope); err != nil {
		return nil, fmt.Errorf("fetch league matches league_id=%d skip=%d: %w", leagueID, skip, err)
	}

	out := make([]usecase.ExternalMatch, 0, len(envelope.Data.League.Matches))
	for _, item := range envelope.Data.League.Matches {
		if item.ID <= 0 {
			continue
		}
		summary := usecase.ExternalMatch{
			ID:              item.ID,
			RadiantTeamID:   item.RadiantTeam.ID,
			RadiantTeamName: strings.TrimSpace(item.RadiantTeam.Name),
			DireTeamID:      item.DireTeam.ID,
			DireTeamName:    strings.TrimSpace(item.DireTeam.Name),
			DidRadiantWin:   item.DidRadiantWin,
		}
		if item.StartDateTime > 0 {
			start := time.Unix(item.StartDateTime, 0).UTC()
			summary.StartDateTime = &start
		}
		if item.SeriesID != nil && *item.SeriesID > 0 {
			seriesID := *item.SeriesID
			summary.SeriesID = &seriesID
		}
		out = append(out, summary)
	}

	return out, nil
}

// FetchLeagueStructure returns the league's node groups with their seeded
// team ids.
func (c *Client) FetchLeagueStructure(ctx context.Context, leagueID int64) ([]usecase.ExternalNodeGroup, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}

	var envelope leagueStructureEnvelope
	if err := c.doGraphQL(ctx, leagueStructureQuery, map[string]any{"leagueId": leagueID}, &envelope); err != nil {
		return nil, fmt.Errorf("fetch league structure league_id=%d: %w", leagueID, err)
	}

	out := make([]usecase.ExternalNodeGroup, 0, len(envelope.Data.League.NodeGroups))
	for _, group := range envelope.Data.League.NodeGroups {
		ng := usecase.ExternalNodeGroup{Name: strings.TrimSpace(group.Name)}
		for _, seed := range group.TeamLeagueSeeds {
			if seed.TeamID > 0 {
				ng.TeamIDs = append(ng.TeamIDs, seed.TeamID)
			}
		}
		out = append(out, ng)
	}

	return out, nil
}

func (c *Client) doGraphQL(ctx context.Context, query string, variables map[string]any, target any) error {
	body, err := sonic.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	key := OpStats
	cacheKey := string(key) + "|" + string(body)

	loader := func(ctx context.Context) (any, error) {
		if c.circuitEnabled {
			if err := c.breaker.Allow(); err != nil {
				c.logger.WarnContext(ctx, "stats circuit breaker rejected request", "state", c.breaker.State())
				return nil, fmt.Errorf("statistics service is temporarily unavailable: %w", err)
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, key); err != nil {
				return nil, err
			}
		}

		raw, reqErr := c.executeRequest(ctx, body)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errStratzTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	}

	var out any
	if c.cache != nil {
		out, err = c.cache.GetOrLoad(ctx, cacheKey, loader)
	} else {
		out, err = loader(ctx)
	}
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected cached payload type %T", out)
	}

	var errEnvelope graphqlErrorEnvelope
	if err := sonic.Unmarshal(raw, &errEnvelope); err == nil && len(errEnvelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", errEnvelope.Errors[0].Message)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode stats payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("accept", "application/json")
		if c.token != "" {
			req.Header.Set("authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errStratzTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errStratzTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("%w: stats status=%d", errStratzTransient, resp.StatusCode)
			default:
				return nil, fmt.Errorf("stats status=%d", resp.StatusCode)
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("stats request failed")
	}
	c.logger.WarnContext(ctx, "stats request failed", "error", lastErr)
	return nil, lastErr
}

type leagueMatchesEnvelope struct {
	Data struct {
		League struct {
			Matches []struct {
				ID            int64  `json:"id"`
				DidRadiantWin bool   `json:"didRadiantWin"`
				StartDateTime int64  `json:"startDateTime"`
				SeriesID      *int64 `json:"seriesId"`
				RadiantTeam   struct {
					ID   int64  `json:"id"`
					Name string `json:"name"`
				} `json:"radiantTeam"`
				DireTeam struct {
					ID   int64  `json:"id"`
					Name string `json:"name"`
				} `json:"direTeam"`
			} `json:"matches"`
		} `json:"league"`
	} `json:"data"`
}

type leagueStructureEnvelope struct {
	Data struct {
		League struct {
			NodeGroups []struct {
				Name            string `json:"name"`
				TeamLeagueSeeds []struct {
					TeamID int64 `json:"teamId"`
				} `json:"teamLeagueSeeds"`
			} `json:"nodeGroups"`
		} `json:"league"`
	} `json:"data"`
}

type graphqlErrorEnvelope struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
