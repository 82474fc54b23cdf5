package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jonathan/course-crawler/internal/config"
	"github.com/jonathan/course-crawler/internal/crawler"
	"github.com/jonathan/course-crawler/internal/fetch"
	"github.com/jonathan/course-crawler/internal/metrics"
	"github.com/jonathan/course-crawler/internal/observability"
	"github.com/jonathan/course-crawler/internal/types"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl pass over every career",
	Long: `Fetches the course listing of every career in order, recovers each payload, and stores one document per career.
Payloads that cannot be recovered are archived verbatim. A failure in one career never stops the others.

Configuration can be loaded from a JSON or YAML file using --config. Command-line arguments override config file values.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

var (
	crawlSettings settingsFlags
	crawlCareers  []string
	crawlStrict   bool
	crawlJSON     bool
)

func init() {
	addSettingsFlags(crawlCmd, &crawlSettings)
	crawlCmd.Flags().StringSliceVar(&crawlCareers, "career", nil, "Career codes to crawl (default all, in enumeration order)")
	crawlCmd.Flags().BoolVar(&crawlStrict, "strict", false, "Exit non-zero when any career fails")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "Print the report as JSON instead of a summary box")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd, &crawlSettings)
	if err != nil {
		return err
	}
	careers, err := parseCareers(crawlCareers)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := crawlOnce(ctx, cfg, careers, logger, cmd.OutOrStdout(), crawlJSON)
	if err != nil {
		return err
	}
	if crawlStrict && report.Failed() > 0 {
		return fmt.Errorf("%d of %d careers failed", report.Failed(), len(report.Results))
	}
	return nil
}

// crawlOnce wires the fetch client, store and metrics, runs one pass, and prints the report.
func crawlOnce(ctx context.Context, cfg config.Config, careers []types.Career, logger *slog.Logger, out io.Writer, asJSON bool) (*crawler.Report, error) {
	client, err := fetch.NewClient(cfg.BaseURL, &fetch.Options{
		Timeout:   cfg.Timeout.Std(),
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	m := metrics.New()
	c, err := crawler.New(crawler.Options{
		Fetcher: client,
		Store:   store,
		Logger:  logger,
		Metrics: m,
		Careers: careers,
		Pacing:  cfg.Pacing.Std(),
	})
	if err != nil {
		return nil, err
	}

	report := c.RunPass(ctx)

	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Error("failed to write metrics", "error", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(report); err != nil {
			return report, fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		observability.NewPrinter(out).PrintReport(report)
	}
	return report, nil
}

func parseCareers(codes []string) ([]types.Career, error) {
	careers := make([]types.Career, 0, len(codes))
	for _, code := range codes {
		career, err := types.ParseCareer(code)
		if err != nil {
			return nil, err
		}
		careers = append(careers, career)
	}
	return careers, nil
}
