// Package gcs uploads crawl artifacts to Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/multierr"
)

var (
	// ErrNoClient is returned when New is given a nil client.
	ErrNoClient = errors.New("storage client is required")
	// ErrNoBucket is returned when the bucket name is empty.
	ErrNoBucket = errors.New("bucket name is required")
)

// Config captures the upload destination.
type Config struct {
	Bucket string
}

// Uploader copies local files into a bucket.
type Uploader struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed uploader.
func New(client *storage.Client, cfg Config) (*Uploader, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNoBucket
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutFile uploads the file at localPath to objectPath and returns its gs:// URI.
func (u *Uploader) PutFile(ctx context.Context, objectPath, localPath, contentType string) (uri string, err error) {
	objectPath = strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if objectPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return u.put(ctx, objectPath, contentType, f)
}

func (u *Uploader) put(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	writer := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		return "", multierr.Append(fmt.Errorf("copy object: %w", err), writer.Close())
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, objectPath), nil
}
