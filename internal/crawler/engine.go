package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/samehost-crawler/internal/clock/system"
	"github.com/JakeFAU/samehost-crawler/internal/id/uuid"
	"github.com/JakeFAU/samehost-crawler/internal/metrics"
)

var (
	// ErrEngineUsed is returned when Run is called on an Engine a second time.
	ErrEngineUsed = errors.New("engine already ran")
	// ErrIncompleteEngine is returned by Run when the fetcher, extractor or
	// sink is nil.
	ErrIncompleteEngine = errors.New("engine needs a fetcher, a link extractor and a sink")
)

// Config controls the engine.
type Config struct {
	// Workers is the size of the worker pool. Values below 1 mean 1.
	Workers int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records crawl metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithRunID fixes the run ID, for callers that tag sink output with it
// before the crawl starts.
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.ids = fixedID(id)
		}
	}
}

type fixedID string

func (f fixedID) NewID() (string, error) {
	return string(f), nil
}

// Engine runs one crawl: it seeds the frontier, runs the worker pool until
// the frontier closes and finalizes the sink. An Engine is single-use.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	extractor LinkExtractor
	sink      Sink
	logger    *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
	ids       IDGenerator

	used    atomic.Bool
	current atomic.Pointer[run]
}

// NewEngine wires an Engine. The engine owns sink: Run always closes it.
// fetcher, extractor and sink must be non-nil; Run reports ErrIncompleteEngine
// otherwise.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	extractor LinkExtractor,
	sink Sink,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		logger:    logger,
		clock:     system.New(),
		ids:       uuid.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state shared by reference between the workers of one crawl.
type run struct {
	id       string
	seed     URL
	host     string
	frontier *Frontier
	visited  *VisitedSet
	sink     Sink

	running       atomic.Bool
	records       atomic.Int64
	fetchFailures atomic.Int64
	droppedLinks  atomic.Int64
	sinkErrors    atomic.Int64
}

func newRun(id string, seed URL, sink Sink) *run {
	return &run{
		id:       id,
		seed:     seed,
		host:     seed.Host(),
		frontier: NewFrontier(),
		visited:  NewVisitedSet(),
		sink:     sink,
	}
}

// Run crawls from rawSeed until every reachable in-domain page has been
// fetched, then finalizes the sink. An invalid seed fails before any worker
// starts. Cancelling ctx discards pending URLs, lets in-flight fetches finish
// and returns ctx.Err() together with the partial summary.
func (e *Engine) Run(ctx context.Context, rawSeed string) (Summary, error) {
	if !e.used.CompareAndSwap(false, true) {
		return Summary{}, ErrEngineUsed
	}
	finalizeCtx := context.WithoutCancel(ctx)
	if e.fetcher == nil || e.extractor == nil || e.sink == nil {
		e.closeSink(finalizeCtx)
		return Summary{}, ErrIncompleteEngine
	}

	seed, err := ParseSeed(rawSeed)
	if err != nil {
		e.closeSink(finalizeCtx)
		return Summary{}, err
	}
	runID, err := e.ids.NewID()
	if err != nil {
		e.closeSink(finalizeCtx)
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}

	r := newRun(runID, seed, e.sink)
	logger := e.logger.With(zap.String("run_id", runID))
	summary := Summary{
		RunID:     runID,
		Seed:      seed.String(),
		Host:      r.host,
		Workers:   e.cfg.Workers,
		StartedAt: e.clock.Now(),
	}

	if err := r.frontier.Enqueue(seed); err != nil {
		e.closeSink(finalizeCtx)
		return summary, fmt.Errorf("enqueue seed: %w", err)
	}
	r.running.Store(true)
	e.current.Store(r)
	logger.Info("crawl started",
		zap.String("seed", seed.String()),
		zap.String("host", r.host),
		zap.Int("workers", e.cfg.Workers),
	)

	stop := context.AfterFunc(ctx, func() {
		discarded := r.frontier.Abort()
		logger.Warn("crawl canceled; frontier aborted", zap.Int("discarded", discarded))
	})
	defer stop()

	var g errgroup.Group
	for i := range e.cfg.Workers {
		w := &worker{
			id:     i,
			engine: e,
			run:    r,
			logger: logger.With(zap.Int("worker", i)),
		}
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	_ = g.Wait()
	r.running.Store(false)
	logger.Info("all workers have exited")

	closeErr := e.sink.Close(finalizeCtx)

	summary.FinishedAt = e.clock.Now()
	summary.Records = r.records.Load()
	summary.Visited = r.visited.Len()
	summary.FetchFailures = r.fetchFailures.Load()
	summary.DroppedLinks = r.droppedLinks.Load()
	summary.SinkErrors = r.sinkErrors.Load()

	if closeErr != nil {
		return summary, fmt.Errorf("finalize sink: %w", closeErr)
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("crawl interrupted: %w", err)
	}
	return summary, nil
}

// Stats returns a snapshot of the current (or last) run. It is safe to call
// concurrently with Run.
func (e *Engine) Stats() Stats {
	r := e.current.Load()
	if r == nil {
		return Stats{}
	}
	return Stats{
		RunID:         r.id,
		Host:          r.host,
		Running:       r.running.Load(),
		Pending:       r.frontier.Len(),
		InFlight:      r.frontier.InFlight(),
		Visited:       r.visited.Len(),
		Records:       r.records.Load(),
		FetchFailures: r.fetchFailures.Load(),
	}
}

func (e *Engine) closeSink(ctx context.Context) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Close(ctx); err != nil {
		e.logger.Warn("failed to close sink", zap.Error(err))
	}
}
