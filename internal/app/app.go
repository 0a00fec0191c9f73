// Package app assembles the import pipeline from configuration: wiki and
// statistics clients, extractors, repositories and the use case services.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/avdeenkov/tourneysync/external/mediawiki"
	"github.com/avdeenkov/tourneysync/external/stratz"
	"github.com/avdeenkov/tourneysync/internal/config"
	"github.com/avdeenkov/tourneysync/internal/extract"
	"github.com/avdeenkov/tourneysync/internal/infrastructure/objectstore"
	"github.com/avdeenkov/tourneysync/internal/infrastructure/repository/postgres"
	"github.com/avdeenkov/tourneysync/internal/platform/cache"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
	"github.com/avdeenkov/tourneysync/internal/platform/ratelimit"
	"github.com/avdeenkov/tourneysync/internal/platform/resilience"
	"github.com/avdeenkov/tourneysync/internal/usecase"
)

// App owns the wired services and the database handle they share.
type App struct {
	Importer *usecase.ImportService
	Batch    *usecase.BatchService

	db     *sqlx.DB
	logger *logging.Logger
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(map[ratelimit.Class]time.Duration{
		mediawiki.OpQuery: cfg.WikiQueryInterval,
		mediawiki.OpParse: cfg.WikiParseInterval,
		stratz.OpStats:    cfg.StatsQueryInterval,
	})

	var responseCache *cache.Store
	if cfg.CacheEnabled {
		responseCache = cache.NewStore(cfg.CacheTTL)
	}

	wiki := mediawiki.NewClient(mediawiki.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.WikiTimeout},
		BaseURL:    cfg.WikiBaseURL,
		UserAgent:  cfg.WikiUserAgent,
		Timeout:    cfg.WikiTimeout,
		MaxRetries: cfg.WikiMaxRetries,
		Limiter:    limiter,
		Cache:      responseCache,
		Logger:     logger.Named("mediawiki"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.WikiCircuitEnabled,
			FailureThreshold: cfg.WikiCircuitFailureCount,
			OpenTimeout:      cfg.WikiCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.WikiCircuitHalfOpenMaxReq,
		},
	})

	var stats usecase.StatsProvider
	if cfg.StatsEnabled {
		stats = stratz.NewClient(stratz.ClientConfig{
			HTTPClient: &http.Client{Timeout: cfg.StatsTimeout},
			BaseURL:    cfg.StatsBaseURL,
			Token:      cfg.StatsToken,
			Timeout:    cfg.StatsTimeout,
			MaxRetries: cfg.StatsMaxRetries,
			Limiter:    limiter,
			Cache:      responseCache,
			Logger:     logger.Named("stratz"),
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.StatsCircuitEnabled,
				FailureThreshold: cfg.StatsCircuitFailureCount,
				OpenTimeout:      cfg.StatsCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.StatsCircuitHalfOpenMaxReq,
			},
		})
	}

	var logos usecase.LogoUploader
	if cfg.ObjectStoreEnabled {
		uploader, err := objectstore.NewUploader(ctx, objectstore.UploaderConfig{
			Endpoint:  cfg.ObjectStoreEndpoint,
			Region:    cfg.ObjectStoreRegion,
			Bucket:    cfg.ObjectStoreBucket,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			PublicURL: cfg.ObjectStorePublicURL,
			UserAgent: cfg.WikiUserAgent,
			Logger:    logger.Named("objectstore"),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("build object store uploader: %w", err)
		}
		logos = uploader
	}

	metadata := extract.NewInfoboxExtractor(wiki, pageURLPrefix(cfg.WikiBaseURL), logger.Named("infobox"))
	rosters := extract.NewRosterExtractor(logger.Named("roster"))
	stages := extract.NewStageMapper(wiki, logger.Named("stage"))

	tournamentRepo := postgres.NewTournamentRepository(db)
	rosterRepo := postgres.NewRosterRepository(db)
	matchRepo := postgres.NewMatchRepository(db)

	importer := usecase.NewImportService(
		wiki,
		stats,
		metadata,
		rosters,
		stages,
		logos,
		tournamentRepo,
		rosterRepo,
		matchRepo,
		cfg.StatsPageSize,
		logger.Named("import"),
	)
	batch := usecase.NewBatchService(importer, wiki, cfg.BatchItemDelay, logger.Named("batch"))

	return &App{
		Importer: importer,
		Batch:    batch,
		db:       db,
		logger:   logger,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", cfg.DBURL,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// pageURLPrefix derives the canonical page URL base from the API
// endpoint, e.g. https://liquipedia.net/dota2/api.php becomes
// https://liquipedia.net/dota2/.
func pageURLPrefix(apiURL string) string {
	trimmed := strings.TrimSpace(apiURL)
	if idx := strings.LastIndex(trimmed, "/"); idx > 0 {
		return trimmed[:idx+1]
	}
	return trimmed
}
