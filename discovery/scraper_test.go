package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pevans/govdigest/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mapFetcher serves canned pages and records every URL requested.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (m *mapFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	page, ok := m.pages[url]
	if !ok {
		return "", &TransportError{URL: url, StatusCode: http.StatusNotFound}
	}
	return page, nil
}

func (m *mapFetcher) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func listPage(dates ...time.Time) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for i, d := range dates {
		fmt.Fprintf(&b, `<li><a href="/art/%d.html">新闻%d</a><span>%s</span></li>`, i, i, d.Format("2006-01-02"))
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func pagedAdapter(t *testing.T) scraper.Adapter {
	return testAdapter(t, func(a *scraper.Adapter) {
		a.Pagination = scraper.PaginationConfig{Next: "{base}?page={page}"}
	})
}

func collect(t *testing.T, fetcher Fetcher, adapter scraper.Adapter, entry string, window TimeWindow) ([][]ListItem, error) {
	t.Helper()
	var pages [][]ListItem
	err := Paginate(context.Background(), fetcher, adapter, entry, window, zap.NewNop(), func(_ int, items []ListItem) error {
		pages = append(pages, items)
		return nil
	})
	return pages, err
}

// TestPaginate_StopsAtStalePage verifies a page without recent items ends the walk
func TestPaginate_StopsAtStalePage(t *testing.T) {
	window := NewTimeWindow(testNow, 7)
	cutoff := window.Cutoff()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://example.com/list":        listPage(testNow, cutoff, cutoff.AddDate(0, 0, -1)),
		"http://example.com/list?page=2": listPage(cutoff.AddDate(0, 0, -1), cutoff.AddDate(0, 0, -2)),
		"http://example.com/list?page=3": listPage(testNow),
	}}

	pages, err := collect(t, fetcher, pagedAdapter(t), "http://example.com/list", window)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0], 2, "the cutoff day is included, the day before is not")
	assert.Equal(t, []string{"http://example.com/list", "http://example.com/list?page=2"}, fetcher.requested())
}

// TestPaginate_FollowsRecentPages verifies pages are walked while they stay recent
func TestPaginate_FollowsRecentPages(t *testing.T) {
	window := NewTimeWindow(testNow, 7)
	fetcher := &mapFetcher{pages: map[string]string{
		"http://example.com/list":        listPage(testNow),
		"http://example.com/list?page=2": listPage(testNow.AddDate(0, 0, -3)),
		"http://example.com/list?page=3": listPage(),
	}}

	pages, err := collect(t, fetcher, pagedAdapter(t), "http://example.com/list", window)

	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Len(t, fetcher.requested(), 3, "an empty page stops the walk")
}

// TestPaginate_FirstPageError verifies an unreachable entry URL is reported
func TestPaginate_FirstPageError(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{}}

	_, err := collect(t, fetcher, pagedAdapter(t), "http://example.com/list", NewTimeWindow(testNow, 7))

	assert.Error(t, err)
}

// TestPaginate_LaterPageError verifies later failures keep earlier results
func TestPaginate_LaterPageError(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		"http://example.com/list": listPage(testNow),
	}}

	pages, err := collect(t, fetcher, pagedAdapter(t), "http://example.com/list", NewTimeWindow(testNow, 7))

	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

// TestPaginate_SinglePage verifies single-page schemes stop after page 1
func TestPaginate_SinglePage(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		"http://example.com/list": listPage(testNow),
	}}

	pages, err := collect(t, fetcher, testAdapter(t, nil), "http://example.com/list", NewTimeWindow(testNow, 7))

	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Len(t, fetcher.requested(), 1)
}

// TestPaginate_RepeatedURL verifies a scheme mapping two pages to one URL stops
func TestPaginate_RepeatedURL(t *testing.T) {
	a := testAdapter(t, func(a *scraper.Adapter) {
		a.Pagination = scraper.PaginationConfig{Next: "{base}"}
	})
	fetcher := &mapFetcher{pages: map[string]string{
		"http://example.com/list": listPage(testNow),
	}}

	pages, err := collect(t, fetcher, a, "http://example.com/list", NewTimeWindow(testNow, 7))

	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Len(t, fetcher.requested(), 1)
}

// TestPaginate_Cancelled verifies a done context stops the walk
func TestPaginate_Cancelled(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Paginate(ctx, fetcher, pagedAdapter(t), "http://example.com/list", NewTimeWindow(testNow, 7), zap.NewNop(),
		func(int, []ListItem) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.requested())
}

// siteServer is a fake province site with a paged list and article pages.
type siteServer struct {
	*httptest.Server
	mu        sync.Mutex
	requested []string
}

func newSiteServer(t *testing.T, routes map[string]string) *siteServer {
	t.Helper()
	s := &siteServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requested = append(s.requested, r.URL.Path)
		s.mu.Unlock()

		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *siteServer) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requested...)
}

func datedList(entries map[string]time.Time, order []string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"list\">")
	for _, href := range order {
		fmt.Fprintf(&b, `<li><a href="%s">标题</a><span>%s</span></li>`, href, entries[href].Format("2006-01-02"))
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

// TestScrapeAdapter_EndToEnd verifies list paging, extraction and truncation together
func TestScrapeAdapter_EndToEnd(t *testing.T) {
	now := time.Now()
	paras := []string{
		strings.Repeat("林", 100),
		strings.Repeat("草", 100),
		strings.Repeat("湿", 100),
		strings.Repeat("地", 100),
		strings.Repeat("园", 100),
	}
	article := "<html><body><div class=\"article\">" + articleBody(paras) + "</div></body></html>"

	entries := map[string]time.Time{
		"/news/a1.html":  now,
		"/news/a2.html":  now,
		"/news/old.html": now.AddDate(0, 0, -10),
	}
	site := newSiteServer(t, map[string]string{
		"/news/index.html":   datedList(entries, []string{"/news/a1.html", "/news/a2.html", "/news/old.html"}),
		"/news/index_1.html": datedList(entries, []string{"/news/old.html"}),
		"/news/a1.html":      article,
		"/news/a2.html":      article,
		"/news/old.html":     article,
	})

	adapter := testAdapter(t, func(a *scraper.Adapter) {
		a.EntryURLs = []string{site.URL + "/news/index.html"}
		a.Pagination = scraper.PaginationConfig{Next: "{base}_{page}.html", Trim: ".html", Offset: -1}
	})
	s := NewScraper(NewHTTPFetcher(time.Second, ""), 350, zap.NewNop())

	digests, err := s.ScrapeAdapter(context.Background(), adapter, NewTimeWindow(now, 7))

	require.NoError(t, err)
	cleaned := []rune(strings.Join(paras, " "))
	want := adapter.Label + string(cleaned[:350]) + "..."
	assert.Equal(t, []string{want, want}, digests)

	paths := site.paths()
	assert.Contains(t, paths, "/news/index_1.html", "page 2 is checked")
	assert.NotContains(t, paths, "/news/index_2.html", "page 3 is never fetched")
	assert.NotContains(t, paths, "/news/old.html", "stale articles are never fetched")
}

// TestScrapeAdapter_SkipsBrokenArticles verifies one bad detail page does not abort the list
func TestScrapeAdapter_SkipsBrokenArticles(t *testing.T) {
	now := time.Now()
	entries := map[string]time.Time{
		"/a.html":       now,
		"/missing.html": now,
		"/short.html":   now,
	}
	site := newSiteServer(t, map[string]string{
		"/list.html":  datedList(entries, []string{"/a.html", "/missing.html", "/short.html"}),
		"/a.html":     `<html><body><div id="zoom"><p>完整正文</p></div></body></html>`,
		"/short.html": `<html><body><div id="other"></div></body></html>`,
	})

	adapter := testAdapter(t, func(a *scraper.Adapter) {
		a.EntryURLs = []string{site.URL + "/list.html"}
		a.Article.Strategy = scraper.ArticleSelector
		a.Article.ContentSelector = "div#zoom"
	})
	s := NewScraper(NewHTTPFetcher(time.Second, ""), 350, zap.NewNop())

	digests, err := s.ScrapeAdapter(context.Background(), adapter, NewTimeWindow(now, 7))

	require.NoError(t, err)
	assert.Equal(t, []string{adapter.Label + "完整正文"}, digests)
}

// TestScrapeAdapter_AllEntriesFail verifies a source with no reachable list fails
func TestScrapeAdapter_AllEntriesFail(t *testing.T) {
	site := newSiteServer(t, map[string]string{})

	adapter := testAdapter(t, func(a *scraper.Adapter) {
		a.EntryURLs = []string{site.URL + "/one.html", site.URL + "/two.html"}
	})
	s := NewScraper(NewHTTPFetcher(time.Second, ""), 350, zap.NewNop())

	digests, err := s.ScrapeAdapter(context.Background(), adapter, NewTimeWindow(time.Now(), 7))

	assert.Error(t, err)
	assert.Nil(t, digests)
}

// TestScrapeAdapter_PartialFailure verifies one reachable entry URL is enough
func TestScrapeAdapter_PartialFailure(t *testing.T) {
	site := newSiteServer(t, map[string]string{
		"/ok.html": datedList(map[string]time.Time{}, nil),
	})

	adapter := testAdapter(t, func(a *scraper.Adapter) {
		a.EntryURLs = []string{site.URL + "/broken.html", site.URL + "/ok.html"}
	})
	s := NewScraper(NewHTTPFetcher(time.Second, ""), 350, zap.NewNop())

	digests, err := s.ScrapeAdapter(context.Background(), adapter, NewTimeWindow(time.Now(), 7))

	require.NoError(t, err)
	assert.NotNil(t, digests)
	assert.Empty(t, digests)
}

// TestScrapeAdapter_ContentLimitOverride verifies the adapter budget wins
func TestScrapeAdapter_ContentLimitOverride(t *testing.T) {
	now := time.Now()
	site := newSiteServer(t, map[string]string{
		"/list.html": datedList(map[string]time.Time{"/a.html": now}, []string{"/a.html"}),
		"/a.html":    `<html><body><div id="zoom"><p>一二三四五六</p></div></body></html>`,
	})

	adapter := testAdapter(t, func(a *scraper.Adapter) {
		a.EntryURLs = []string{site.URL + "/list.html"}
		a.Article.Strategy = scraper.ArticleSelector
		a.Article.ContentSelector = "div#zoom"
		a.MaxContentChars = 4
	})
	s := NewScraper(NewHTTPFetcher(time.Second, ""), 350, zap.NewNop())

	digests, err := s.ScrapeAdapter(context.Background(), adapter, NewTimeWindow(now, 7))

	require.NoError(t, err)
	assert.Equal(t, []string{adapter.Label + "一二三四..."}, digests)
}
