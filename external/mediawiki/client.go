package mediawiki

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/avdeenkov/tourneysync/internal/platform/cache"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
	"github.com/avdeenkov/tourneysync/internal/platform/ratelimit"
	"github.com/avdeenkov/tourneysync/internal/platform/resilience"
)

const (
	defaultBaseURL   = "https://liquipedia.net/dota2/api.php"
	defaultUserAgent = "tourneysync/1.0 (tournament data sync)"

	// The wiki API treats plain queries and render ("parse") operations
	// as different cost classes; each gets its own request budget.
	OpQuery ratelimit.Class = "wiki_query"
	OpParse ratelimit.Class = "wiki_parse"
)

var errWikiTransient = crerr.New("wiki transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	Limiter        *ratelimit.Limiter
	Cache          *cache.Store
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client fetches wikitext, rendered HTML, images and category listings
// from a MediaWiki API. Every request passes the response cache first and
// the per-class rate limiter second, so identical requests within one
// import run never stall on the throttle twice.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
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
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		userAgent:      userAgent,
		maxRetries:     cfg.MaxRetries,
		limiter:        cfg.Limiter,
		cache:          cfg.Cache,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}
}

// FetchWikitext returns the raw source of a page, or empty for a missing
// page. Missing pages are a routine condition, not an error.
func (c *Client) FetchWikitext(ctx context.Context, pageName string) (string, error) {
	pageName = strings.TrimSpace(pageName)
	if pageName == "" {
		return "", fmt.Errorf("page name is required")
	}

	params := url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"rvprop":        {"content"},
		"rvslots":       {"main"},
		"titles":        {pageName},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var envelope revisionsEnvelope
	if err := c.doJSON(ctx, OpQuery, params, &envelope); err != nil {
		return "", err
	}

	for _, page := range envelope.Query.Pages {
		if page.Missing {
			return "", nil
		}
		for _, rev := range page.Revisions {
			if content := rev.Slots.Main.Content; content != "" {
				return content, nil
			}
		}
	}

	return "", nil
}

// FetchRenderedHTML returns the rendered page body. This is the expensive
// operation class: the API renders database-backed pages on demand.
func (c *Client) FetchRenderedHTML(ctx context.Context, pageName string) (string, error) {
	pageName = strings.TrimSpace(pageName)
	if pageName == "" {
		return "", fmt.Errorf("page name is required")
	}

	params := url.Values{
		"action":        {"parse"},
		"page":          {pageName},
		"prop":          {"text"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var envelope parseEnvelope
	if err := c.doJSON(ctx, OpParse, params, &envelope); err != nil {
		return "", err
	}
	if envelope.Error != nil {
		if envelope.Error.Code == "missingtitle" {
			return "", nil
		}
		return "", fmt.Errorf("wiki parse %s: %s", pageName, envelope.Error.Code)
	}

	return envelope.Parse.Text, nil
}

// FetchPageImageNames lists the image file names used on a page.
func (c *Client) FetchPageImageNames(ctx context.Context, pageName string) ([]string, error) {
	pageName = strings.TrimSpace(pageName)
	if pageName == "" {
		return nil, fmt.Errorf("page name is required")
	}

	params := url.Values{
		"action":        {"query"},
		"prop":          {"images"},
		"titles":        {pageName},
		"imlimit":       {"100"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var envelope imagesEnvelope
	if err := c.doJSON(ctx, OpQuery, params, &envelope); err != nil {
		return nil, err
	}

	var out []string
	for _, page := range envelope.Query.Pages {
		for _, image := range page.Images {
			if title := strings.TrimSpace(image.Title); title != "" {
				out = append(out, title)
			}
		}
	}
	return out, nil
}

// ResolveImageURL returns the public URL for an image file name, or empty
// when the file does not exist.
func (c *Client) ResolveImageURL(ctx context.Context, imageName string) (string, error) {
	imageName = strings.TrimSpace(imageName)
	if imageName == "" {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(imageName), "file:") {
		imageName = "File:" + imageName
	}

	params := url.Values{
		"action":        {"query"},
		"prop":          {"imageinfo"},
		"iiprop":        {"url"},
		"titles":        {imageName},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var envelope imageInfoEnvelope
	if err := c.doJSON(ctx, OpQuery, params, &envelope); err != nil {
		return "", err
	}

	for _, page := range envelope.Query.Pages {
		for _, info := range page.ImageInfo {
			if info.URL != "" {
				return info.URL, nil
			}
		}
	}
	return "", nil
}

// FetchCategoryMembers lists page names in a category, up to limit.
func (c *Client) FetchCategoryMembers(ctx context.Context, categoryName string, limit int) ([]string, error) {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return nil, fmt.Errorf("category name is required")
	}
	if !strings.HasPrefix(categoryName, "Category:") {
		categoryName = "Category:" + categoryName
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	params := url.Values{
		"action":        {"query"},
		"list":          {"categorymembers"},
		"cmtitle":       {categoryName},
		"cmlimit":       {strconv.Itoa(limit)},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var envelope categoryEnvelope
	if err := c.doJSON(ctx, OpQuery, params, &envelope); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(envelope.Query.CategoryMembers))
	for _, member := range envelope.Query.CategoryMembers {
		if title := strings.TrimSpace(member.Title); title != "" {
			out = append(out, title)
		}
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, class ratelimit.Class, params url.Values, target any) error {
	fullURL := c.baseURL + "?" + params.Encode()
	key := string(class) + "|" + params.Encode()

	loader := func(ctx context.Context) (any, error) {
		if c.circuitEnabled {
			if err := c.breaker.Allow(); err != nil {
				c.logger.WarnContext(ctx, "wiki circuit breaker rejected request", "state", c.breaker.State())
				return nil, fmt.Errorf("wiki source is temporarily unavailable: %w", err)
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, class); err != nil {
				return nil, err
			}
		}

		raw, err := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if err != nil && crerr.Is(err, errWikiTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, err
	}

	var out any
	var err error
	if c.cache != nil {
		out, err = c.cache.GetOrLoad(ctx, key, loader)
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
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode wiki payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("user-agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errWikiTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errWikiTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: wiki status=%d", errWikiTransient, resp.StatusCode)
			default:
				return nil, fmt.Errorf("wiki status=%d", resp.StatusCode)
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
		lastErr = fmt.Errorf("wiki request failed")
	}
	c.logger.WarnContext(ctx, "wiki request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type revisionsEnvelope struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

type parseEnvelope struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

type imagesEnvelope struct {
	Query struct {
		Pages []struct {
			Images []struct {
				Title string `json:"title"`
			} `json:"images"`
		} `json:"pages"`
	} `json:"query"`
}

type imageInfoEnvelope struct {
	Query struct {
		Pages []struct {
			ImageInfo []struct {
				URL string `json:"url"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

type categoryEnvelope struct {
	Query struct {
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}
