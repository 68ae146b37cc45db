package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiSinkFansOut(t *testing.T) {
	t.Parallel()

	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, nil, b)
	rec := ResultRecord{URL: "http://a.test/", Status: 200}

	require.NoError(t, m.Write(context.Background(), rec))
	require.NoError(t, m.Close(context.Background()))
	require.Equal(t, []ResultRecord{rec}, a.records)
	require.Equal(t, []ResultRecord{rec}, b.records)
	require.Equal(t, 1, a.closed)
	require.Equal(t, 1, b.closed)
}

func TestMultiSinkKeepsDeliveringAfterFailure(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("db down")
	closeErr := errors.New("flush failed")
	bad := &recordingSink{writeErr: writeErr, closeErr: closeErr}
	good := &recordingSink{}
	m := NewMultiSink(bad, good)

	err := m.Write(context.Background(), ResultRecord{URL: "http://a.test/x", Status: 404})
	require.ErrorIs(t, err, writeErr)
	require.Len(t, good.records, 1)

	err = m.Close(context.Background())
	require.ErrorIs(t, err, closeErr)
	require.Equal(t, 1, good.closed)
}

func TestMultiSinkSecondaryFailureIsPartial(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("db down")
	primary := &recordingSink{}
	m := NewMultiSink(primary, &recordingSink{writeErr: dbErr})

	err := m.Write(context.Background(), ResultRecord{URL: "http://a.test/", Status: 200})
	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	require.ErrorIs(t, err, dbErr)
	require.Len(t, primary.records, 1)
}

func TestMultiSinkPrimaryFailureIsNotPartial(t *testing.T) {
	t.Parallel()

	m := NewMultiSink(&recordingSink{writeErr: errors.New("disk full")}, &recordingSink{})
	err := m.Write(context.Background(), ResultRecord{URL: "http://a.test/", Status: 200})
	require.Error(t, err)
	var partial *PartialWriteError
	require.False(t, errors.As(err, &partial))

	require.NoError(t, NewMultiSink().Write(context.Background(), ResultRecord{}))
}
