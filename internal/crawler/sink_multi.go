package crawler

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// PartialWriteError reports a record that the primary sink accepted but one
// or more secondary sinks rejected. The record still counts as written.
type PartialWriteError struct {
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("secondary sink write: %v", e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// MultiSink fans every record out to several sinks. The first sink is the
// primary output; a failure in one sink does not stop delivery to the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a Sink writing to every non-nil sink in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Write forwards record to every sink. A primary failure is returned as is,
// combined with any other failures; failures of secondary sinks alone are
// wrapped in a *PartialWriteError.
func (m *MultiSink) Write(ctx context.Context, record ResultRecord) error {
	if len(m.sinks) == 0 {
		return nil
	}
	primaryErr := m.sinks[0].Write(ctx, record)
	var secondaryErr error
	for _, s := range m.sinks[1:] {
		secondaryErr = multierr.Append(secondaryErr, s.Write(ctx, record))
	}
	switch {
	case primaryErr != nil:
		return multierr.Append(primaryErr, secondaryErr)
	case secondaryErr != nil:
		return &PartialWriteError{Err: secondaryErr}
	default:
		return nil
	}
}

// Close closes every sink, even when an earlier one fails.
func (m *MultiSink) Close(ctx context.Context) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close(ctx))
	}
	return err
}
