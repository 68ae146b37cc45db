// Package extract pulls hyperlinks out of fetched HTML pages using goquery.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

// linkSelector matches every anchor that carries a target.
const linkSelector = "a[href]"

// LinkExtractor implements crawler.LinkExtractor.
type LinkExtractor struct {
	logger *zap.Logger
}

// New creates a LinkExtractor. A nil logger discards skip notices.
func New(logger *zap.Logger) *LinkExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkExtractor{logger: logger}
}

// Links parses body as HTML and returns each anchor target resolved against
// base, in document order with repeats removed. Hrefs that fail to resolve,
// or resolve to something other than an http(s) URL, are logged and skipped.
// A <base href> in the document replaces base for resolution.
func (e *LinkExtractor) Links(base crawler.URL, body []byte) ([]crawler.URL, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	resolveFrom := documentBase(doc, base)
	seen := make(map[crawler.URL]struct{})
	var links []crawler.URL

	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		link, err := resolveFrom.Resolve(href)
		if errors.Is(err, crawler.ErrUnsupportedScheme) {
			e.logger.Debug("skipping non-http href", zap.String("page", base.String()), zap.String("href", href))
			return
		}
		if err != nil {
			e.logger.Warn("skipping unresolvable href",
				zap.String("page", base.String()),
				zap.String("href", href),
				zap.Error(err),
			)
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

func documentBase(doc *goquery.Document, page crawler.URL) crawler.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return page
	}
	resolved, err := page.Resolve(href)
	if err != nil {
		return page
	}
	return resolved
}
