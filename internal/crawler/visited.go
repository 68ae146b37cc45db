package crawler

import "sync"

// VisitedSet records every URL a worker has claimed during one crawl run.
// It only grows.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Claim inserts u and reports whether this call performed the insertion.
// Exactly one of any number of concurrent claims on the same URL wins.
func (s *VisitedSet) Claim(u URL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[u.String()]; ok {
		return false
	}
	s.urls[u.String()] = struct{}{}
	return true
}

// Len returns the number of claimed URLs.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
