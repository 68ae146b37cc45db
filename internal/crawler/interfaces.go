package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL. A non-nil error means no response was obtained
// (transport failure); HTTP error statuses are returned as responses.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LinkExtractor returns the absolute URLs of the hyperlinks in body,
// resolved against base. Hrefs that do not resolve are skipped.
type LinkExtractor interface {
	Links(base URL, body []byte) ([]URL, error)
}

// Sink receives one record per fetched URL. Write may be called from many
// goroutines; Close finalizes the output and is called once.
type Sink interface {
	Write(ctx context.Context, record ResultRecord) error
	Close(ctx context.Context) error
}

// Uploader copies a local artifact to blob storage and returns its URI.
type Uploader interface {
	PutFile(ctx context.Context, objectPath string, localPath string, contentType string) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
