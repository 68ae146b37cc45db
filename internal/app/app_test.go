package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/app"
	"github.com/JakeFAU/samehost-crawler/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Crawler: config.CrawlerConfig{
			SeedURL:        "http://a.test/",
			Output:         filepath.Join(t.TempDir(), "crawl.json"),
			UserAgent:      "sitecrawler-test",
			RequestTimeout: 2 * time.Second,
			Workers:        2,
		},
		Fetch: config.FetchConfig{Mode: config.FetchModeHTTP},
		Sink:  config.SinkConfig{BufferSize: 8},
	}
}

func TestNewApp_Minimal(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.NotEmpty(t, a.RunID)
	require.NotNil(t, a.Engine)
	require.NotNil(t, a.Output)
	require.NotNil(t, a.Reporter)
	require.False(t, a.Reporter.Enabled())
	require.Nil(t, a.Server)
	require.Equal(t, cfg.Crawler.Output, a.Artifact().Path)
}

func TestNewApp_RunsCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<a href="/about">about</a>`))
		case "/about":
			_, _ = w.Write([]byte(`<a href="/">home</a>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := baseConfig(t)
	cfg.Crawler.SeedURL = srv.URL + "/"
	cfg.API.Addr = "127.0.0.1:0"
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	require.NotNil(t, a.Server)

	summary, err := a.Engine.Run(context.Background(), cfg.Crawler.SeedURL)
	require.NoError(t, err)
	require.Equal(t, a.RunID, summary.RunID)
	require.EqualValues(t, 2, summary.Records)

	artifact := a.Artifact()
	require.Len(t, artifact.SHA256, 64)
	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), srv.URL+"/about")
}

func TestNewApp_UnopenableOutput(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Crawler.Output = filepath.Join(t.TempDir(), "missing", "crawl.json")
	_, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "create output file")
}

func TestNewApp_BadPostgresDSN(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Sink.Postgres.DSN = "::not a dsn::"
	_, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "postgres")
}

func TestNewApp_HeadlessMode(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Fetch.Mode = config.FetchModeHeadless
	cfg.Fetch.Headless.MaxParallel = 1
	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
