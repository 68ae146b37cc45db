// Package cmd defines and implements the CLI commands for the sitecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/app"
	"github.com/JakeFAU/samehost-crawler/internal/config"
	"github.com/JakeFAU/samehost-crawler/internal/crawler"
	"github.com/JakeFAU/samehost-crawler/internal/logging"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls a site starting from --url",
		Long: `Fetches the seed URL and every same-host page reachable from it, each at
most once, streaming {"url","status"} records into the output file. The worker
count comes from THREAD_COUNT (default 1).`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("url", "", "seed URL to start crawling from")
	cmd.Flags().String("output", "crawl.json", "path of the JSON results file")
	mustBind("crawler.seed_url", cmd.Flags().Lookup("url"))
	mustBind("crawler.output", cmd.Flags().Lookup("output"))
	return cmd
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Crawler.WorkersDefaulted {
		logger.Warn("THREAD_COUNT not set; crawling with a single worker")
	}
	// Fail on a bad seed before the output file is created.
	if _, err := crawler.ParseSeed(cfg.Crawler.SeedURL); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize crawl services: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("Error closing crawl services", zap.Error(cerr))
		}
	}()

	serverDone := startStatusServer(ctx, a, cfg.API.Addr, logger)
	summary, runErr := a.Engine.Run(ctx, cfg.Crawler.SeedURL)
	serverDone()

	logger.Info("Crawl finished",
		zap.String("run_id", summary.RunID),
		zap.String("host", summary.Host),
		zap.Int("workers", summary.Workers),
		zap.Int64("records", summary.Records),
		zap.Int("visited", summary.Visited),
		zap.Int64("fetch_failures", summary.FetchFailures),
		zap.Int64("dropped_links", summary.DroppedLinks),
		zap.Int64("sink_errors", summary.SinkErrors),
		zap.Duration("duration", summary.Duration()),
		zap.Int64("output_failures", a.Output.Failed()),
		zap.String("output", a.Output.Path()),
	)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("Crawl interrupted; output holds the pages fetched so far")
			return nil
		}
		return fmt.Errorf("run crawler: %w", runErr)
	}

	if a.Reporter.Enabled() {
		if _, err := a.Reporter.Report(context.WithoutCancel(ctx), summary, a.Artifact()); err != nil {
			return fmt.Errorf("report crawl: %w", err)
		}
	}
	return nil
}

// startStatusServer serves the status API while the crawl runs. The returned
// func stops the server and waits for it to exit.
func startStatusServer(ctx context.Context, a *app.App, addr string, logger *zap.Logger) func() {
	if a.Server == nil {
		return func() {}
	}
	serverCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Server.ListenAndServe(serverCtx, addr); err != nil {
			logger.Error("Status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
