package search

import "log/slog"

// Service fronts the optional Meilisearch engine. When the engine is nil or
// unhealthy, Search reports ok=false and the caller filters in SQL instead.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

// Search returns matching submission ids in relevance order. ok is false
// when the engine could not serve the query.
func (s *Service) Search(q Query) ([]string, bool) {
	if s.meili == nil || !s.meili.Healthy() {
		return nil, false
	}
	ids, err := s.meili.Search(q)
	if err != nil {
		slog.Warn("search: meilisearch error, falling back to sql", "error", err)
		return nil, false
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true
}

// IndexSubmission pushes one submission into the index, fire-and-forget.
// Write paths never block on the search engine.
func (s *Service) IndexSubmission(rec Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSubmission(rec); err != nil {
			slog.Warn("search: index submission", "id", rec.ID, "error", err)
		}
	}()
}

// ReindexAll bulk-loads the whole catalog, called at startup.
func (s *Service) ReindexAll(records []Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexSubmissions(records); err != nil {
		slog.Warn("search: reindex submissions", "error", err)
	}
}
