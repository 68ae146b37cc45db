// Package app builds the long-lived services of one crawl from the typed
// configuration, acting as a dependency injection container for the CLI.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/api"
	"github.com/JakeFAU/samehost-crawler/internal/config"
	"github.com/JakeFAU/samehost-crawler/internal/crawler"
	"github.com/JakeFAU/samehost-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/samehost-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/samehost-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/samehost-crawler/internal/id/uuid"
	"github.com/JakeFAU/samehost-crawler/internal/metrics"
	pubsubpublisher "github.com/JakeFAU/samehost-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/samehost-crawler/internal/report"
	"github.com/JakeFAU/samehost-crawler/internal/sink/jsonfile"
	pgsink "github.com/JakeFAU/samehost-crawler/internal/sink/postgres"
	"github.com/JakeFAU/samehost-crawler/internal/storage/gcs"
	"github.com/JakeFAU/samehost-crawler/internal/telemetry"
)

const serviceName = "sitecrawler"

// App holds the services wired for one crawl run.
type App struct {
	RunID    string
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Engine   *crawler.Engine
	Output   *jsonfile.Sink
	Reporter *report.Reporter
	// Server is nil unless api.addr is configured.
	Server *api.Server

	closers []func() error
}

// NewApp creates every service cfg asks for. The engine owns the result
// sinks; Close releases everything else. On error, whatever was already
// created is released.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger.Info("Initializing crawl services...", zap.String("run_id", runID))

	reg := prometheus.NewRegistry()
	a := &App{
		RunID:    runID,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
	var sinks []crawler.Sink
	defer func() {
		if err == nil {
			return
		}
		for _, s := range sinks {
			err = multierr.Append(err, s.Close(context.WithoutCancel(ctx)))
		}
		err = multierr.Append(err, a.Close())
	}()

	fetcher, err := a.buildFetcher(cfg)
	if err != nil {
		return nil, err
	}

	output, err := jsonfile.Create(cfg.Crawler.Output, jsonfile.Options{
		BufferSize: cfg.Sink.BufferSize,
		Logger:     logger.Named("jsonfile"),
	})
	if err != nil {
		return nil, err
	}
	a.Output = output
	sinks = append(sinks, output)

	if cfg.PostgresEnabled() {
		pg, err := pgsink.New(ctx, pgsink.Config{
			DSN:   cfg.Sink.Postgres.DSN,
			Table: cfg.Sink.Postgres.Table,
			RunID: runID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres sink: %w", err)
		}
		sinks = append(sinks, pg)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("Writing results to PostgreSQL", zap.String("table", cfg.Sink.Postgres.Table))
	}

	var sink crawler.Sink = output
	if len(sinks) > 1 {
		sink = crawler.NewMultiSink(sinks...)
	}

	reporter, err := a.buildReporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Reporter = reporter

	a.Engine = crawler.NewEngine(
		crawler.Config{Workers: cfg.Crawler.Workers},
		fetcher,
		extract.New(logger.Named("extract")),
		sink,
		logger.Named("crawler"),
		crawler.WithMetrics(a.Metrics),
		crawler.WithRunID(runID),
	)
	if cfg.API.Addr != "" {
		a.Server = api.NewServer(a.Engine, reg, a.Metrics, logger.Named("api"))
	}

	logger.Info("Crawl services initialized successfully.")
	return a, nil
}

func (a *App) buildFetcher(cfg config.Config) (crawler.Fetcher, error) {
	if cfg.Fetch.Mode == config.FetchModeHeadless {
		f, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Fetch.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Fetch.Headless.NavigationTimeout,
			MaxBodyBytes:      cfg.Crawler.MaxBodyBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize headless fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error {
			f.Close()
			return nil
		})
		a.Logger.Info("Using headless Chrome fetcher", zap.Int("max_parallel", cfg.Fetch.Headless.MaxParallel))
		return f, nil
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.Crawler.RequestTimeout,
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
	}), nil
}

func (a *App) buildReporter(ctx context.Context, cfg config.Config) (*report.Reporter, error) {
	var uploader crawler.Uploader
	if cfg.UploadEnabled() {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		u, err := gcs.New(client, gcs.Config{Bucket: cfg.Upload.GCSBucket})
		if err != nil {
			return nil, err
		}
		uploader = u
		a.Logger.Info("Uploading artifact to GCS", zap.String("bucket", cfg.Upload.GCSBucket))
	}

	var publisher crawler.Publisher
	if cfg.NotifyEnabled() {
		tp, err := telemetry.InitTracerProvider(ctx, serviceName, a.RunID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			return tp.Shutdown(context.WithoutCancel(ctx))
		})
		p, err := pubsubpublisher.Dial(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		publisher = p
		a.Logger.Info("Publishing completion notice", zap.String("topic", cfg.Notify.Topic))
	}

	return report.New(report.Config{
		Prefix: cfg.Upload.Prefix,
		Topic:  cfg.Notify.Topic,
	}, uploader, publisher, a.Logger.Named("report")), nil
}

// Artifact describes the finished JSON output.
func (a *App) Artifact() report.Artifact {
	return report.Artifact{
		Path:   a.Output.Path(),
		SHA256: a.Output.Digest(),
	}
}

// Close releases fetchers and cloud clients in reverse creation order.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
