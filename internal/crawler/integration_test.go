package crawler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
	"github.com/JakeFAU/samehost-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/samehost-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/samehost-crawler/internal/sink/jsonfile"
)

// newSite serves a small site whose pages link to each other, to a missing
// page and to an external host that must be recorded but never expanded.
func newSite(t *testing.T, external string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body>
			<a href="/about">About</a>
			<a href="/blog/">Blog</a>
			<a href="/about#team">Team</a>
			<a href="%s/landing">Partner</a>
			<a href="mailto:hello@example.com">Mail</a>
		</body></html>`, external)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a href="/">Home</a><a href="blog/">Blog</a>`)
	})
	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blog/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<a href="post-1">One</a><a href="../missing">Gone</a>`)
	})
	mux.HandleFunc("/blog/post-1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a href="/">Home</a>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlLocalSite(t *testing.T) {
	t.Parallel()

	var externalHits atomic.Int32
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalHits.Add(1)
		if r.URL.Path != "/landing" {
			t.Errorf("external page %s was expanded", r.URL.Path)
		}
		fmt.Fprint(w, `<a href="/deeper">should not be followed</a>`)
	}))
	t.Cleanup(external.Close)
	// Use a different host name for the same loopback listener.
	externalURL := "http://localhost" + external.URL[len("http://127.0.0.1"):]

	site := newSite(t, externalURL)
	out := filepath.Join(t.TempDir(), "crawl.json")
	sink, err := jsonfile.Create(out, jsonfile.Options{})
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	engine := crawler.NewEngine(
		crawler.Config{Workers: 4},
		collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second}),
		extract.New(logger),
		sink,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	summary, err := engine.Run(ctx, site.URL)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var records []crawler.ResultRecord
	require.NoError(t, json.Unmarshal(data, &records))

	got := make(map[string]uint16, len(records))
	for _, r := range records {
		_, dup := got[r.URL]
		require.False(t, dup, "duplicate record for %s", r.URL)
		got[r.URL] = r.Status
	}
	require.Equal(t, map[string]uint16{
		site.URL + "/":            200,
		site.URL + "/about":       200,
		site.URL + "/blog/":       200,
		site.URL + "/blog/post-1": 200,
		site.URL + "/missing":     404,
		externalURL + "/landing":  200,
	}, got)
	require.EqualValues(t, len(got), summary.Records)
	require.EqualValues(t, 1, externalHits.Load())
	require.Equal(t, int64(len(got)), sink.Count())
}
