// Package jsonfile streams crawl results into a JSON array file as they are
// produced, so a partially completed crawl still leaves readable output.
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
	"github.com/JakeFAU/samehost-crawler/internal/hash/sha256"
)

// ErrSinkClosed is returned by Write after Close.
var ErrSinkClosed = errors.New("json sink closed")

const defaultBufferSize = 1024

// Options tunes a Sink.
type Options struct {
	// BufferSize is the number of records queued ahead of the writer goroutine.
	BufferSize int
	Logger     *zap.Logger
}

// Sink implements crawler.Sink. Records are handed to a single writer
// goroutine, which appends each one to a pretty-printed JSON array. Close
// terminates the array, flushes and closes the file.
type Sink struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	out    io.Writer
	digest *sha256.Digest
	logger *zap.Logger

	records chan crawler.ResultRecord
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	// written and failed are owned by the writer goroutine until done closes.
	written int64
	failed  int64

	closeOnce sync.Once
	closeErr  error
}

// Create truncates or creates the file at path and writes the opening bracket.
func Create(path string, opts Options) (*Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	s, err := newSink(file, opts)
	if err != nil {
		return nil, multierr.Append(err, file.Close())
	}
	s.path = path
	return s, nil
}

func newSink(file *os.File, opts Options) (*Sink, error) {
	if opts.BufferSize < 0 {
		opts.BufferSize = defaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := bufio.NewWriter(file)
	digest := sha256.New()
	s := &Sink{
		file:    file,
		buf:     buf,
		out:     io.MultiWriter(buf, digest),
		digest:  digest,
		logger:  logger,
		records: make(chan crawler.ResultRecord, opts.BufferSize),
		done:    make(chan struct{}),
	}
	if _, err := io.WriteString(s.out, "["); err != nil {
		return nil, fmt.Errorf("begin json array: %w", err)
	}
	go s.drain()
	return s, nil
}

// Write queues record for the writer goroutine. It blocks while the queue is
// full and returns ErrSinkClosed once Close has been called.
func (s *Sink) Write(ctx context.Context, record crawler.ResultRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.records <- record:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue record: %w", ctx.Err())
	}
}

// Close drains queued records, terminates the array and closes the file.
// It fails only when the array cannot be terminated, flushed or closed.
// Only the first call does any work; later calls return the same result.
func (s *Sink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.records)
		s.mu.Unlock()

		select {
		case <-s.done:
		case <-ctx.Done():
			s.closeErr = fmt.Errorf("wait for json writer: %w", ctx.Err())
			return
		}
		s.closeErr = s.finish()
	})
	return s.closeErr
}

func (s *Sink) drain() {
	defer close(s.done)
	for record := range s.records {
		if err := s.encode(record); err != nil {
			s.logger.Error("failed to write result record",
				zap.String("url", record.URL),
				zap.Error(err),
			)
			s.failed++
			continue
		}
		s.written++
	}
}

func (s *Sink) encode(record crawler.ResultRecord) error {
	data, err := json.MarshalIndent(record, "  ", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	sep := ",\n  "
	if s.written == 0 {
		sep = "\n  "
	}
	if _, err := io.WriteString(s.out, sep); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}
	if _, err := s.out.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *Sink) finish() error {
	tail := "]\n"
	if s.written > 0 {
		tail = "\n]\n"
	}
	var err error
	if _, werr := io.WriteString(s.out, tail); werr != nil {
		err = multierr.Append(err, fmt.Errorf("end json array: %w", werr))
	}
	if ferr := s.buf.Flush(); ferr != nil {
		err = multierr.Append(err, fmt.Errorf("flush output: %w", ferr))
	}
	if cerr := s.file.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close output: %w", cerr))
	}
	return err
}

// Path returns the output file path.
func (s *Sink) Path() string {
	return s.path
}

// Count returns the number of records written. It is only meaningful after
// Close has returned.
func (s *Sink) Count() int64 {
	select {
	case <-s.done:
		return s.written
	default:
		return 0
	}
}

// Failed returns the number of records that could not be written. Such
// records are logged and skipped; they do not fail Close. It is only
// meaningful after Close has returned.
func (s *Sink) Failed() int64 {
	select {
	case <-s.done:
		return s.failed
	default:
		return 0
	}
}

// Digest returns the hex SHA-256 of every byte written to the file. It is
// only meaningful after a successful Close.
func (s *Sink) Digest() string {
	select {
	case <-s.done:
		return s.digest.Hex()
	default:
		return ""
	}
}
