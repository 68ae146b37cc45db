package api

import (
	"net/http"

	"github.com/JakeFAU/samehost-crawler/internal/crawler"
)

// ProgressSource reports the state of the current crawl. *crawler.Engine
// implements it.
type ProgressSource interface {
	Stats() crawler.Stats
}

// getProgress handles GET /v1/progress. It returns the crawler.Stats snapshot,
// or 503 when no engine is attached.
func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.progress == nil {
		s.writeError(w, http.StatusServiceUnavailable, "crawl engine unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, s.progress.Stats())
}
