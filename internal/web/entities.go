package web

import (
	"strings"
	"time"

	"github.com/leonardcser/entity-cache/internal/cache"
)

// Page is the summary of one fetched URL, cached under the URL as requested.
type Page struct {
	URL         string   `json:"url"`
	FinalURL    string   `json:"final_url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
}

func (p Page) CacheID() string { return p.URL }

func (p Page) Clone() Page {
	if p.Links != nil {
		p.Links = append([]string(nil), p.Links...)
	}
	return p
}

// Result is one search hit, cached under its link so every search that
// returns the same page shares one record.
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

func (r Result) CacheID() string { return r.Link }

// Search is the ordered result list of one normalized query.
type Search struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

func (s Search) CacheID() string { return s.Query }

func (s Search) CacheChildren(m *cache.Manager) { cache.PutMany(m, s.Results) }

// EstablishConsistency reloads the search and then each of its results, so
// a result updated by a later fetch shows its newer title and description.
func (s *Search) EstablishConsistency(m *cache.Manager, stale time.Time) {
	if !cache.Resync(m, s, stale) {
		return
	}
	s.Results = cache.RefreshAll(m, s.Results, stale)
}

func (s Search) Clone() Search {
	if s.Results != nil {
		s.Results = append([]Result(nil), s.Results...)
	}
	return s
}

// NormalizeQuery trims, lowercases and collapses whitespace, so trivially
// different spellings of a query share one cache entry.
func NormalizeQuery(q string) string {
	return strings.ToLower(singleLine(q))
}

// Register opts every web entity into persistence.
func Register(m *cache.Manager) {
	cache.RegisterForPersistence[Page](m)
	cache.RegisterForPersistence[Result](m)
	cache.RegisterForPersistence[Search](m)
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
