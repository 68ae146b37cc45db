package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

func mustURL(t *testing.T, raw string) crawler.URL {
	t.Helper()
	u, err := crawler.ParseURL(raw)
	require.NoError(t, err)
	return u
}

func urlStrings(urls []crawler.URL) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.String())
	}
	return out
}

func TestLinksResolvesAgainstPage(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="/abs">abs</a>
		<a href="rel">rel</a>
		<a href="../up">up</a>
		<a href="https://Other.test:443/x#frag">other</a>
		<a href="  /spaced  ">spaced</a>
		<a name="anchor-only">no href</a>
		<a href="">empty</a>
	</body></html>`)

	links, err := New(nil).Links(mustURL(t, "http://site.test/dir/page"), body)
	require.NoError(t, err)
	require.Equal(t, []string{
		"http://site.test/abs",
		"http://site.test/dir/rel",
		"http://site.test/up",
		"https://other.test/x",
		"http://site.test/spaced",
	}, urlStrings(links))
}

func TestLinksDeduplicatesInDocumentOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`<a href="/b">1</a><a href="/a">2</a><a href="/b#again">3</a><a href="http://SITE.test:80/a">4</a>`)
	links, err := New(nil).Links(mustURL(t, "http://site.test/"), body)
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/b", "http://site.test/a"}, urlStrings(links))
}

func TestLinksSkipsUnsupportedAndBrokenHrefs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	body := []byte(`
		<a href="mailto:a@b.test">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="tel:+15551234">tel</a>
		<a href="http://[::1">broken</a>
		<a href="/ok">ok</a>`)

	links, err := New(zap.New(core)).Links(mustURL(t, "http://site.test/"), body)
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/ok"}, urlStrings(links))
	require.Equal(t, 3, logs.FilterMessage("skipping non-http href").Len())
	require.Equal(t, 1, logs.FilterMessage("skipping unresolvable href").Len())
}

func TestLinksHonorsBaseElement(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><base href="/docs/"></head>
		<body><a href="intro">intro</a></body></html>`)
	links, err := New(nil).Links(mustURL(t, "http://site.test/index.html"), body)
	require.NoError(t, err)
	require.Equal(t, []string{"http://site.test/docs/intro"}, urlStrings(links))
}

func TestLinksNonHTMLBody(t *testing.T) {
	t.Parallel()

	links, err := New(nil).Links(mustURL(t, "http://site.test/"), []byte(`{"json": true}`))
	require.NoError(t, err)
	require.Empty(t, links)

	links, err = New(nil).Links(mustURL(t, "http://site.test/"), nil)
	require.NoError(t, err)
	require.Empty(t, links)
}
