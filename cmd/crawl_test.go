package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/samehost-crawler/internal/config"
	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestCrawlCommandWritesResults(t *testing.T) {
	t.Setenv(config.ThreadCountEnv, "4")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<a href="/a">a</a><a href="/missing">m</a>`))
		case "/a":
			_, _ = w.Write([]byte(`<a href="/">home</a>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, runRoot(t, "crawl", "--url", srv.URL, "--output", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var records []crawler.ResultRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.ElementsMatch(t, []crawler.ResultRecord{
		{URL: srv.URL + "/", Status: 200},
		{URL: srv.URL + "/a", Status: 200},
		{URL: srv.URL + "/missing", Status: 404},
	}, records)
}

func TestCrawlCommandRejectsBadSeed(t *testing.T) {
	t.Setenv(config.ThreadCountEnv, "1")

	out := filepath.Join(t.TempDir(), "out.json")
	err := runRoot(t, "crawl", "--url", "not a url", "--output", out)
	require.ErrorIs(t, err, crawler.ErrInvalidSeed)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr), "output must not be created for a bad seed")
}

func TestCrawlCommandRejectsBadThreadCount(t *testing.T) {
	t.Setenv(config.ThreadCountEnv, "many")

	err := runRoot(t, "crawl", "--url", "http://a.test/", "--output", filepath.Join(t.TempDir(), "o.json"))
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestCrawlCommandRequiresURL(t *testing.T) {
	t.Setenv(config.ThreadCountEnv, "1")

	err := runRoot(t, "crawl")
	require.ErrorContains(t, err, "crawler.seed_url is required")
}
