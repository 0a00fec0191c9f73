package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/avdeenkov/tourneysync/internal/app"
	"github.com/avdeenkov/tourneysync/internal/config"
	"github.com/avdeenkov/tourneysync/internal/platform/logging"
	"github.com/avdeenkov/tourneysync/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dryRun      = flag.Bool("dry-run", false, "parse and report without writing to storage")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
		skipMatches = flag.Bool("skip-matches", false, "skip match sync even when a league id is present")
		skipLogos   = flag.Bool("skip-logos", false, "skip team logo mirroring")
		force       = flag.Bool("force", false, "re-import tournaments that already exist")
		limit       = flag.Int("limit", 0, "cap the number of tournaments in batch modes (0 = no cap)")
		tier        = flag.String("tier", "", "import a whole tier category (requires -year)")
		year        = flag.Int("year", 0, "tournament year for -tier mode")
		series      = flag.String("series", "", "comma separated page names to import in sequence")
	)
	flag.Usage = usage
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	level := cfg.LogLevel
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(level)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		return 1
	}
	defer func() {
		_ = application.Close()
	}()

	opts := usecase.ImportOptions{
		DryRun:      *dryRun,
		SkipMatches: *skipMatches,
		SkipLogos:   *skipLogos,
		Force:       *force,
	}

	switch {
	case *tier != "":
		result, err := application.Batch.ImportByTierYear(ctx, *tier, *year, *limit, opts)
		return reportBatch(logger, result, err)
	case *series != "":
		pages := splitPages(*series)
		result, err := application.Batch.ImportSeries(ctx, pages, *limit, opts)
		return reportBatch(logger, result, err)
	case flag.NArg() == 1:
		result, err := application.Importer.ImportTournament(ctx, flag.Arg(0), opts)
		if err != nil {
			logger.Error("import failed", "page", flag.Arg(0), "error", err)
			return 1
		}
		logger.Info("import finished",
			"page", result.PageName,
			"skipped", result.Skipped,
			"teams", result.TeamsWritten,
			"players", result.PlayersWritten,
			"matches", result.MatchesWritten,
			"dropped", result.Dropped,
		)
		if !result.Success {
			for _, msg := range result.Errors {
				logger.Error("import error", "page", result.PageName, "detail", msg)
			}
			return 1
		}
		return 0
	default:
		usage()
		return 2
	}
}

func reportBatch(logger *logging.Logger, result usecase.BatchResult, err error) int {
	if err != nil {
		logger.Error("batch import failed", "error", err)
		return 1
	}
	logger.Info("batch import finished",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	if result.HasFailures() {
		return 1
	}
	return 0
}

func splitPages(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if page := strings.TrimSpace(part); page != "" {
			out = append(out, page)
		}
	}
	return out
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  importer [flags] <page name>          import one tournament page
  importer [flags] -tier N -year YYYY   import a tier category for a year
  importer [flags] -series "A,B,C"      import pages in sequence

Flags:
`)
	flag.PrintDefaults()
}
