// Package report publishes the outcome of a finished crawl: it uploads the
// result artifact to blob storage and announces the run on a topic.
package report

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
	"github.com/JakeFAU/samehost-crawler/internal/id/uuid"
)

const (
	artifactContentType = "application/json"
	tracerName          = "github.com/JakeFAU/samehost-crawler/internal/report"
)

// Config controls where artifacts and notices go. Empty fields disable the
// matching step.
type Config struct {
	Prefix string
	Topic  string
}

// Artifact describes the local output of a crawl.
type Artifact struct {
	Path   string
	SHA256 string
}

// Notice is the payload published when a crawl completes.
type Notice struct {
	RunID       string    `json:"run_id"`
	Seed        string    `json:"seed"`
	Records     int64     `json:"records"`
	Visited     int       `json:"visited"`
	ArtifactURI string    `json:"artifact_uri"`
	SHA256      string    `json:"sha256"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Reporter runs the post-crawl steps. Uploader and Publisher may be nil.
type Reporter struct {
	cfg       Config
	uploader  crawler.Uploader
	publisher crawler.Publisher
	logger    *zap.Logger
}

// New builds a Reporter.
func New(cfg Config, uploader crawler.Uploader, publisher crawler.Publisher, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		cfg:       cfg,
		uploader:  uploader,
		publisher: publisher,
		logger:    logger,
	}
}

// Enabled reports whether Report would do anything.
func (r *Reporter) Enabled() bool {
	return r.uploader != nil || r.notifies()
}

func (r *Reporter) notifies() bool {
	return r.publisher != nil && strings.TrimSpace(r.cfg.Topic) != ""
}

// Report uploads the artifact (when an uploader is set) and publishes a
// Notice (when a publisher and topic are set). It returns the notice that
// was, or would have been, published.
func (r *Reporter) Report(ctx context.Context, summary crawler.Summary, artifact Artifact) (_ Notice, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "report.Report")
	span.SetAttributes(
		attribute.String("crawl.run_id", summary.RunID),
		attribute.Int64("crawl.records", summary.Records),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	notice := Notice{
		RunID:       summary.RunID,
		Seed:        summary.Seed,
		Records:     summary.Records,
		Visited:     summary.Visited,
		ArtifactURI: localURI(artifact.Path),
		SHA256:      artifact.SHA256,
		FinishedAt:  summary.FinishedAt,
	}
	logger := r.logger.With(zap.String("run_id", summary.RunID))

	if r.uploader != nil {
		objectPath := r.objectPath(summary.RunID)
		uri, err := r.uploader.PutFile(ctx, objectPath, artifact.Path, artifactContentType)
		if err != nil {
			return notice, fmt.Errorf("upload artifact: %w", err)
		}
		notice.ArtifactURI = uri
		logger.Info("artifact uploaded", zap.String("uri", uri))
	}

	if !r.notifies() {
		return notice, nil
	}
	id, err := r.publisher.Publish(ctx, r.cfg.Topic, notice)
	if err != nil {
		return notice, fmt.Errorf("publish completion notice: %w", err)
	}
	logger.Info("completion notice published",
		zap.String("topic", r.cfg.Topic),
		zap.String("message_id", id),
	)
	return notice, nil
}

// objectPath partitions artifacts by the UTC day the run started when the
// run ID carries a timestamp.
func (r *Reporter) objectPath(runID string) string {
	prefix := strings.Trim(r.cfg.Prefix, "/")
	if created, err := uuid.CreatedAt(runID); err == nil {
		prefix = path.Join(prefix, created.Format("2006/01/02"))
	}
	return path.Join(prefix, runID+".json")
}

func localURI(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return "file://" + filepath.ToSlash(p)
}
