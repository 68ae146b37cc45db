package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

func newMockSink(t *testing.T, table string) (*Sink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	s, err := NewWithPool(mock, table, "run-1")
	require.NoError(t, err)
	return s, mock
}

func TestWriteInsertsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockSink(t, "")
	now := time.Unix(1700000000, 0).UTC()
	s.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO crawl_results").
		WithArgs("run-1", "http://a.test/", int32(404), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Write(context.Background(), crawler.ResultRecord{URL: "http://a.test/", Status: 404})
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWritePropagatesError(t *testing.T) {
	t.Parallel()

	s, mock := newMockSink(t, "results")
	reset := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO results").
		WithArgs("run-1", "http://a.test/", int32(200), pgxmock.AnyArg()).
		WillReturnError(reset)

	err := s.Write(context.Background(), crawler.ResultRecord{URL: "http://a.test/", Status: 200})
	require.ErrorContains(t, err, "insert crawl result")
	require.ErrorIs(t, err, reset)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	s, mock := newMockSink(t, "results")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS results").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cases := []struct {
		name  string
		pool  execCloser
		table string
		runID string
	}{
		{name: "nil pool", pool: nil, table: "t", runID: "r"},
		{name: "bad table", pool: mock, table: "drop table;", runID: "r"},
		{name: "missing run id", pool: mock, table: "t", runID: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWithPool(tc.pool, tc.table, tc.runID)
			require.Error(t, err)
		})
	}
}

func TestNilSink(t *testing.T) {
	t.Parallel()

	var s *Sink
	require.ErrorIs(t, s.Write(context.Background(), crawler.ResultRecord{}), ErrNotConfigured)
	require.ErrorIs(t, s.EnsureSchema(context.Background()), ErrNotConfigured)
	require.NoError(t, s.Close(context.Background()))
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
