package crawler

import (
	"net/http"
	"time"
)

// ResultRecord is the persisted outcome of one fetched URL.
type ResultRecord struct {
	URL    string `json:"url"`
	Status uint16 `json:"status"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation when a
// response was obtained, whatever its status.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OutcomeKind groups fetch results the way the worker acts on them.
type OutcomeKind int

// Fetch outcomes.
const (
	// OutcomeTransportFailure means no response was obtained.
	OutcomeTransportFailure OutcomeKind = iota
	// OutcomeSuccess is a 2xx response; its body may be expanded.
	OutcomeSuccess
	// OutcomeHTTPError is a 4xx or 5xx response; recorded, never expanded.
	OutcomeHTTPError
	// OutcomeOther is any other status (1xx, 3xx); recorded, never expanded.
	OutcomeOther
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	default:
		return "other"
	}
}

// Classify maps a Fetcher result onto an OutcomeKind.
func Classify(resp FetchResponse, err error) OutcomeKind {
	switch {
	case err != nil:
		return OutcomeTransportFailure
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeSuccess
	case resp.StatusCode >= 400 && resp.StatusCode < 600:
		return OutcomeHTTPError
	default:
		return OutcomeOther
	}
}

// Summary reports what one crawl run did.
type Summary struct {
	RunID         string    `json:"run_id"`
	Seed          string    `json:"seed"`
	Host          string    `json:"host"`
	Workers       int       `json:"workers"`
	Records       int64     `json:"records"`
	Visited       int       `json:"visited"`
	FetchFailures int64     `json:"fetch_failures"`
	DroppedLinks  int64     `json:"dropped_links"`
	SinkErrors    int64     `json:"sink_errors"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Stats is a point-in-time view of a running crawl.
type Stats struct {
	RunID         string `json:"run_id"`
	Host          string `json:"host"`
	Running       bool   `json:"running"`
	Pending       int    `json:"pending"`
	InFlight      int    `json:"in_flight"`
	Visited       int    `json:"visited"`
	Records       int64  `json:"records"`
	FetchFailures int64  `json:"fetch_failures"`
}
