package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidSeed is returned when the seed URL cannot start a crawl.
	ErrInvalidSeed = errors.New("invalid seed url")
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// URL is a canonical absolute http(s) URL. Two URLs that differ only in
// scheme/host case, an explicit default port or a fragment compare equal.
// The zero value is not a valid URL.
type URL struct {
	canonical string
	host      string
}

// ParseURL parses and canonicalizes an absolute http or https URL.
func ParseURL(raw string) (URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URL{}, fmt.Errorf("parse url: %w", err)
	}
	return fromParsed(parsed)
}

// ParseSeed validates the crawl seed. Any failure wraps ErrInvalidSeed.
func ParseSeed(raw string) (URL, error) {
	if strings.TrimSpace(raw) == "" {
		return URL{}, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	u, err := ParseURL(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return u, nil
}

func fromParsed(parsed *url.URL) (URL, error) {
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return URL{}, fmt.Errorf("%w %q", ErrUnsupportedScheme, parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return URL{}, errors.New("url has no host")
	}

	hostPort := host
	if strings.Contains(host, ":") {
		hostPort = "[" + host + "]"
	}
	if port := parsed.Port(); port != "" && !isDefaultPort(scheme, port) {
		hostPort += ":" + port
	}

	cp := *parsed
	cp.Scheme = scheme
	cp.Host = hostPort
	cp.Fragment = ""
	cp.RawFragment = ""
	if cp.Path == "" && cp.Opaque == "" {
		cp.Path = "/"
		cp.RawPath = ""
	}
	return URL{canonical: cp.String(), host: host}, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// String returns the canonical form.
func (u URL) String() string {
	return u.canonical
}

// Host returns the lower-cased hostname without port.
func (u URL) Host() string {
	return u.host
}

// IsZero reports whether u is the zero value.
func (u URL) IsZero() bool {
	return u.canonical == ""
}

// Resolve resolves ref against u, the way a browser resolves an href on the
// page at u, and canonicalizes the result.
func (u URL) Resolve(ref string) (URL, error) {
	base, err := url.Parse(u.canonical)
	if err != nil {
		return URL{}, fmt.Errorf("parse base: %w", err)
	}
	rel, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return URL{}, fmt.Errorf("parse href %q: %w", ref, err)
	}
	return fromParsed(base.ResolveReference(rel))
}

// MarshalText encodes the canonical form so URL can be used directly in
// JSON payloads and log fields.
func (u URL) MarshalText() ([]byte, error) {
	return []byte(u.canonical), nil
}
