package web

import (
	"bytes"
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/entity-cache/internal/cache"
	"github.com/leonardcser/entity-cache/internal/logger"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 1 * 1024 * 1024 // 1MB
	maxLinks        = 50
)

// Fetcher downloads pages and caches their summaries as Page entities.
type Fetcher struct {
	c   *colly.Collector
	m   *cache.Manager
	ttl time.Duration
}

func NewFetcher(m *cache.Manager, ttl time.Duration) *Fetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       1 * time.Second,
	})
	c.SetRequestTimeout(RequestTimeout)
	return &Fetcher{c: c, m: m, ttl: ttl}
}

// Fetch returns the summary of rawURL, from the cache if it was fetched
// within the TTL. A fresh fetch also updates any cached search result that
// links to the same URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return Page{}, ctx.Err()
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return Page{}, errors.WithContext(
			errors.New(errors.CodeInvalidInput, "url must start with http:// or https://"), "url", rawURL)
	}

	stale := f.m.Now().Add(-f.ttl)
	if p, ok := cache.Get[Page](f.m, rawURL, stale); ok {
		logger.Debugf("fetch cache hit: %s", rawURL)
		return p, nil
	}

	body, finalURL, contentType, err := f.download(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	p, err := summarize(body, contentType, finalURL)
	if err != nil {
		return Page{}, errors.WithContext(err, "url", rawURL)
	}
	p.URL = rawURL

	cache.Put(f.m, p)
	cache.Modify(f.m, rawURL, func(r Result, ok bool) (Result, bool) {
		if !ok {
			return r, false
		}
		if p.Title != "" {
			r.Title = p.Title
		}
		if p.Description != "" {
			r.Description = p.Description
		}
		return r, true
	})
	return p, nil
}

// download visits rawURL on a clone of the base collector, so concurrent
// fetches never share callbacks.
func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, string, string, error) {
	c := f.c.Clone()
	c.Context = ctx

	var (
		body        []byte
		finalURL    string
		contentType string
	)
	c.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(*r.Headers)
	})
	c.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		finalURL = r.Request.URL.String()
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(rawURL); err != nil {
		if ctx.Err() != nil {
			return nil, "", "", ctx.Err()
		}
		return nil, "", "", errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "fetch failed"), "url", rawURL)
	}
	if ctx.Err() != nil {
		return nil, "", "", ctx.Err()
	}
	if len(body) == 0 {
		return nil, "", "", errors.WithContext(errors.New(errors.CodeNetwork, "empty response body"), "url", rawURL)
	}
	return body, finalURL, contentType, nil
}

// summarize turns a response body into a Page. HTML is reduced to its
// visible content as Markdown; other text types are kept verbatim.
func summarize(body []byte, contentType, finalURL string) (Page, error) {
	if len(body) > MaxResponseSize {
		body = append(body[:MaxResponseSize:MaxResponseSize], []byte("... [response trimmed due to size]")...)
	}

	lowerCT := strings.ToLower(contentType)
	if !strings.HasPrefix(lowerCT, "text/") {
		return Page{}, errors.New(errors.CodeInvalidInput,
			"unsupported content type: binary files like images or PDFs are not supported")
	}
	if !strings.Contains(lowerCT, "text/html") {
		return Page{FinalURL: finalURL, Text: string(body)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CodeInvalidInput, "parse html")
	}

	// Remove non-visible elements
	doc.Find("script, style, noscript, iframe, object, embed, img, video, picture, svg, canvas, audio, source, track, map, area, form, label, input, button, select, textarea, progress, ins, applet").Remove()

	p := Page{
		FinalURL:    finalURL,
		Title:       strings.TrimSpace(doc.Find("head > title").First().Text()),
		Description: strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", "")),
		Links:       extractLinks(doc, finalURL),
	}
	plainText := singleLine(doc.Find("body").Text())

	// Links are listed separately; drop anchors and page chrome from the text.
	doc.Find("a").Remove()
	doc.Find("header, footer, aside").Remove()

	htmlStr, err := doc.Html()
	if err != nil {
		return Page{}, errors.Wrap(err, errors.CodeInternal, "render html")
	}
	if markdown, err := htmltomarkdown.ConvertString(htmlStr); err == nil {
		p.Text = markdown
	} else {
		p.Text = plainText
	}
	return p, nil
}

// extractLinks returns up to maxLinks absolute, fragment-free links, sorted.
func extractLinks(doc *goquery.Document, finalURL string) []string {
	base, _ := url.Parse(finalURL)
	set := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() && base != nil {
			u = base.ResolveReference(u)
		}
		switch u.Scheme {
		case "", "javascript", "mailto", "tel":
			return
		}
		u.Fragment = ""
		set[u.String()] = struct{}{}
	})

	links := make([]string, 0, len(set))
	for l := range set {
		links = append(links, l)
	}
	sort.Strings(links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}
