package crawler

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// worker pulls URLs from the run's frontier until it closes.
type worker struct {
	id     int
	engine *Engine
	run    *run
	logger *zap.Logger
}

func (w *worker) loop(ctx context.Context) {
	m := w.engine.metrics
	m.IncActiveWorkers()
	defer m.DecActiveWorkers()

	for {
		target, ok := w.run.frontier.Dequeue()
		if !ok {
			w.logger.Debug("frontier closed, worker exiting")
			return
		}
		m.SetFrontier(w.run.frontier.Len(), w.run.frontier.InFlight())

		w.process(ctx, target)

		// Every enqueue from target has happened by now.
		if w.run.frontier.Finish() {
			w.logger.Info("frontier empty and nothing in flight; closing frontier")
		}
		m.SetFrontier(w.run.frontier.Len(), w.run.frontier.InFlight())
	}
}

func (w *worker) process(ctx context.Context, target URL) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("recovered panic while processing url",
				zap.String("url", target.String()),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()

	if !w.run.visited.Claim(target) {
		w.engine.metrics.IncDuplicateClaims()
		return
	}

	start := time.Now()
	resp, err := w.engine.fetcher.Fetch(ctx, FetchRequest{URL: target.String()})
	w.engine.metrics.ObserveFetch(time.Since(start))

	kind := Classify(resp, err)
	if kind == OutcomeTransportFailure {
		w.run.fetchFailures.Add(1)
		w.engine.metrics.IncFetchFailures()
		w.logger.Warn("fetch failed", zap.String("url", target.String()), zap.Error(err))
		return
	}

	w.emit(ctx, ResultRecord{URL: target.String(), Status: statusCode(resp.StatusCode)})
	w.engine.metrics.ObservePage(resp.StatusCode, len(resp.Body))
	w.logger.Debug("page fetched",
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("outcome", kind.String()),
	)

	if kind != OutcomeSuccess {
		return
	}
	if target.Host() != w.run.host {
		return
	}
	w.expand(target, resp.Body)
}

func (w *worker) emit(ctx context.Context, record ResultRecord) {
	// Records of URLs already fetched are still written after cancellation.
	err := w.run.sink.Write(context.WithoutCancel(ctx), record)
	if err == nil {
		w.run.records.Add(1)
		return
	}
	w.run.sinkErrors.Add(1)
	w.engine.metrics.IncSinkErrors()
	w.logger.Error("failed to write result record",
		zap.String("url", record.URL),
		zap.Uint16("status", record.Status),
		zap.Error(err),
	)
	var partial *PartialWriteError
	if errors.As(err, &partial) {
		w.run.records.Add(1)
	}
}

func (w *worker) expand(page URL, body []byte) {
	links, err := w.engine.extractor.Links(page, body)
	if err != nil {
		w.logger.Warn("link extraction failed", zap.String("url", page.String()), zap.Error(err))
	}

	enqueued := 0
	for _, link := range links {
		if err := w.run.frontier.Enqueue(link); err != nil {
			w.run.droppedLinks.Add(1)
			w.engine.metrics.IncEnqueueDropped()
			w.logger.Debug("dropping link",
				zap.String("url", link.String()),
				zap.String("page", page.String()),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}
	w.engine.metrics.AddLinksDiscovered(enqueued)
}

func statusCode(code int) uint16 {
	if code < 0 || code > math.MaxUint16 {
		return 0
	}
	return uint16(code)
}
