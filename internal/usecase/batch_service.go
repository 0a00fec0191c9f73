package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avdeenkov/tourneysync/internal/platform/logging"
)

// BatchResult aggregates one batch run. Failed counts pages whose import
// returned an error; their partial results are still listed.
type BatchResult struct {
	Imported int
	Skipped  int
	Failed   int
	Results  []ImportResult
}

func (b BatchResult) HasFailures() bool {
	return b.Failed > 0
}

// BatchService drives ImportService over page lists: a wiki category
// filtered by tier and year, or a fixed tournament series. Items run
// strictly sequentially with a fixed inter-item delay so the shared rate
// budgets hold, and one item's failure never aborts the rest.
type BatchService struct {
	importer  *ImportService
	wiki      WikiProvider
	itemDelay time.Duration
	sleep     func(context.Context, time.Duration) error
	logger    *logging.Logger
}

func NewBatchService(importer *ImportService, wiki WikiProvider, itemDelay time.Duration, logger *logging.Logger) *BatchService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BatchService{
		importer:  importer,
		wiki:      wiki,
		itemDelay: itemDelay,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

// ImportByTierYear imports every member of the wiki's tier category whose
// page name carries the given year. limit <= 0 means no cap.
func (s *BatchService) ImportByTierYear(ctx context.Context, tier string, year int, limit int, opts ImportOptions) (BatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BatchService.ImportByTierYear")
	defer span.End()

	tier = strings.TrimSpace(tier)
	if tier == "" {
		return BatchResult{}, fmt.Errorf("%w: tier is required", ErrInvalidInput)
	}
	if year < 2011 || year > time.Now().Year()+1 {
		return BatchResult{}, fmt.Errorf("%w: year %d is out of range", ErrInvalidInput, year)
	}

	category := fmt.Sprintf("Tier %s Tournaments", tier)
	members, err := s.wiki.FetchCategoryMembers(ctx, category, 500)
	if err != nil {
		return BatchResult{}, fmt.Errorf("fetch category %q: %w", category, err)
	}

	yearToken := fmt.Sprintf("%d", year)
	pages := make([]string, 0, len(members))
	for _, member := range members {
		if strings.Contains(member, yearToken) {
			pages = append(pages, member)
		}
	}
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}

	s.logger.InfoContext(ctx, "tier/year batch resolved", "category", category,
		"year", year, "pages", len(pages))
	return s.run(ctx, pages, opts), nil
}

// ImportSeries imports a fixed list of tournament pages in order.
func (s *BatchService) ImportSeries(ctx context.Context, pages []string, limit int, opts ImportOptions) (BatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BatchService.ImportSeries")
	defer span.End()

	cleaned := make([]string, 0, len(pages))
	for _, page := range pages {
		if page = strings.TrimSpace(page); page != "" {
			cleaned = append(cleaned, page)
		}
	}
	if len(cleaned) == 0 {
		return BatchResult{}, fmt.Errorf("%w: at least one page is required", ErrInvalidInput)
	}
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}

	return s.run(ctx, cleaned, opts), nil
}

func (s *BatchService) run(ctx context.Context, pages []string, opts ImportOptions) BatchResult {
	var out BatchResult
	for i, page := range pages {
		if i > 0 && s.itemDelay > 0 {
			if err := s.sleep(ctx, s.itemDelay); err != nil {
				s.logger.WarnContext(ctx, "batch interrupted", "error", err)
				break
			}
		}

		result, err := s.importer.ImportTournament(ctx, page, opts)
		out.Results = append(out.Results, result)
		switch {
		case err != nil:
			out.Failed++
			s.logger.ErrorContext(ctx, "tournament import failed", "page", page, "error", err)
		case result.Skipped:
			out.Skipped++
		default:
			out.Imported++
			s.logger.InfoContext(ctx, "tournament imported", "page", page,
				"teams", result.TeamsWritten, "players", result.PlayersWritten,
				"matches", result.MatchesWritten, "dropped", result.Dropped)
		}
	}

	s.logger.InfoContext(ctx, "batch complete", "imported", out.Imported,
		"skipped", out.Skipped, "failed", out.Failed)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
