// Package crawler implements the same-host crawl engine: the frontier, the
// visited set, the worker pool with its termination detection, and the
// orchestrator that ties them to a Fetcher, a LinkExtractor and a Sink.
package crawler
