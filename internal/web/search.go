package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/entity-cache/internal/cache"
	"github.com/leonardcser/entity-cache/internal/logger"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	defaultLimit          = 10
	maxResults            = 20
)

// extractDDGURL extracts the actual URL from DuckDuckGo's redirect URL format
// Input: //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=...
// Output: https://example.com
func extractDDGURL(ddgURL string) string {
	if strings.HasPrefix(ddgURL, "//duckduckgo.com/l/") {
		ddgURL = "https:" + ddgURL
	}
	u, err := url.Parse(ddgURL)
	if err != nil {
		return ddgURL
	}
	uddg := u.Query().Get("uddg")
	if uddg == "" {
		return ddgURL
	}
	// Query() already unescaped the parameter once.
	return uddg
}

// Searcher queries DuckDuckGo's HTML endpoint and caches each query as a
// Search entity whose results are cached alongside it.
type Searcher struct {
	client   *http.Client
	endpoint string
	m        *cache.Manager
	ttl      time.Duration
}

func NewSearcher(m *cache.Manager, ttl time.Duration) *Searcher {
	return &Searcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: defaultSearchEndpoint,
		m:        m,
		ttl:      ttl,
	}
}

// Search returns up to limit results for query. A cached search younger than
// the TTL is refreshed from the store instead of queried again, which picks up
// result details that pages fetched since have filled in.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return nil, errors.New(errors.CodeInvalidInput, "empty query")
	}
	if limit <= 0 || limit > maxResults {
		limit = defaultLimit
	}

	stale := s.m.Now().Add(-s.ttl)
	if cached, ok := cache.Get[Search](s.m, q, stale); ok {
		logger.Debugf("search cache hit: %q", q)
		cache.Refresh(s.m, &cached, stale)
		return truncate(cached.Results, limit), nil
	}

	results, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	cache.Put(s.m, Search{Query: q, Results: results})
	return truncate(results, limit), nil
}

func (s *Searcher) query(ctx context.Context, q string) ([]Result, error) {
	values := url.Values{"q": {q}, "kl": {"us-en"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "build search request")
	}
	setBrowserHeaders(req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "search request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.New(errors.CodeNetwork, fmt.Sprintf("duckduckgo status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "read search results")
	}
	return parseResults(doc, maxResults), nil
}

// parseResults reads result blocks from a DuckDuckGo HTML page, dropping
// repeated links.
func parseResults(doc *goquery.Document, limit int) []Result {
	results := make([]Result, 0, limit)
	seen := make(map[string]bool)
	add := func(title, link, desc string) bool {
		if title == "" || link == "" {
			return len(results) < limit
		}
		link = extractDDGURL(link)
		if !seen[link] {
			seen[link] = true
			results = append(results, Result{Title: title, Description: desc, Link: link})
		}
		return len(results) < limit
	}

	doc.Find("div.result.results_links.results_links_deep.web-result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		a := sel.Find("a.result__a").First()
		return add(singleLine(a.Text()), strings.TrimSpace(a.AttrOr("href", "")),
			singleLine(sel.Find("a.result__snippet").First().Text()))
	})
	if len(results) == 0 {
		// Fallback: scan anchor list and nearest snippet up the tree
		doc.Find("a.result__a").EachWithBreak(func(_ int, n *goquery.Selection) bool {
			return add(singleLine(n.Text()), strings.TrimSpace(n.AttrOr("href", "")),
				singleLine(n.Parents().Find("a.result__snippet").First().Text()))
		})
	}
	return results
}

func truncate(rs []Result, limit int) []Result {
	if len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
