package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLCanonicalizes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
		host string
	}{
		{"http://Example.COM", "http://example.com/", "example.com"},
		{"HTTPS://example.com:443/a", "https://example.com/a", "example.com"},
		{"http://example.com:80/a?b=1#frag", "http://example.com/a?b=1", "example.com"},
		{"http://example.com:8080/", "http://example.com:8080/", "example.com"},
		{"  http://example.com/x  ", "http://example.com/x", "example.com"},
		{"http://[::1]:8080/p", "http://[::1]:8080/p", "::1"},
		{"http://example.com/b?z=1&a=2", "http://example.com/b?z=1&a=2", "example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			u, err := ParseURL(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, u.String())
			require.Equal(t, tc.host, u.Host())
			require.False(t, u.IsZero())
		})
	}
}

func TestParseURLEquivalentFormsCompareEqual(t *testing.T) {
	t.Parallel()

	a, err := ParseURL("http://EXAMPLE.com:80/page#top")
	require.NoError(t, err)
	b, err := ParseURL("http://example.com/page")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParseURLRejects(t *testing.T) {
	t.Parallel()

	_, err := ParseURL("mailto:someone@example.com")
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = ParseURL("ftp://example.com/file")
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = ParseURL("http:///path-only")
	require.Error(t, err)

	_, err = ParseURL("http://exa mple.com/")
	require.Error(t, err)
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	u, err := ParseSeed("https://site.test")
	require.NoError(t, err)
	require.Equal(t, "https://site.test/", u.String())

	for _, raw := range []string{"", "   ", "not a url", "/relative/path", "javascript:void(0)"} {
		_, err := ParseSeed(raw)
		require.ErrorIs(t, err, ErrInvalidSeed, "seed %q", raw)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := ParseURL("http://a.test/dir/page.html")
	require.NoError(t, err)

	cases := map[string]string{
		"other.html":             "http://a.test/dir/other.html",
		"../up":                  "http://a.test/up",
		"/root":                  "http://a.test/root",
		"?q=1":                   "http://a.test/dir/page.html?q=1",
		"#section":               "http://a.test/dir/page.html",
		"//B.test/x":             "http://b.test/x",
		"https://a.test:443/sec": "https://a.test/sec",
	}
	for href, want := range cases {
		got, err := base.Resolve(href)
		require.NoError(t, err, href)
		require.Equal(t, want, got.String(), href)
	}

	_, err = base.Resolve("mailto:x@a.test")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = base.Resolve("http://[::1")
	require.Error(t, err)
}

func TestURLMarshalText(t *testing.T) {
	t.Parallel()

	u, err := ParseURL("http://a.test")
	require.NoError(t, err)
	text, err := u.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "http://a.test/", string(text))
	require.True(t, URL{}.IsZero())
}
