package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/govdigest/scraper"
)

// ListItem is one dated article link found on a list page.
type ListItem struct {
	URL   string
	Date  time.Time
	Title string
}

var recordPattern = regexp.MustCompile(`(?s)<record>\s*<!\[CDATA\[(.*?)\]\]>\s*</record>`)

// ParseList extracts dated article links from a list page using the
// configured strategy. Rows without a link or a parseable date are skipped.
// A page with none of the expected structure yields no items and no error.
func ParseList(markup, pageURL string, cfg scraper.ListConfig) ([]ListItem, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	switch cfg.Strategy {
	case scraper.ListXMLRecords:
		return parseRecords(markup, base, cfg)
	case scraper.ListFeed:
		return parseFeed(markup, base)
	default:
		return parseRows(markup, base, cfg)
	}
}

func parseRows(markup string, base *url.URL, cfg scraper.ListConfig) ([]ListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse list page: %w", err)
	}

	scope := doc.Selection
	if cfg.Container != "" {
		scope = doc.Find(cfg.Container)
	}

	var items []ListItem
	scope.Find(cfg.RowSelector).Each(func(_ int, row *goquery.Selection) {
		if item, ok := readRow(row, base, cfg); ok {
			items = append(items, item)
		}
	})
	return items, nil
}

// parseRecords handles pages that ship their list rows as CDATA records
// inside an XML data island.
func parseRecords(markup string, base *url.URL, cfg scraper.ListConfig) ([]ListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse list page: %w", err)
	}

	var islands []string
	doc.Find(cfg.RecordScript).Each(func(_ int, s *goquery.Selection) {
		islands = append(islands, s.Text())
	})
	if len(islands) == 0 {
		// Data proxy endpoints return the bare XML document.
		islands = []string{markup}
	}

	var items []ListItem
	for _, island := range islands {
		for _, m := range recordPattern.FindAllStringSubmatch(island, -1) {
			fragment := strings.TrimSpace(m[1])
			if strings.HasPrefix(strings.ToLower(fragment), "<tr") {
				fragment = "<table><tbody>" + fragment + "</tbody></table>"
			}

			row, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
			if err != nil {
				continue
			}
			if item, ok := readRow(row.Find("body"), base, cfg); ok {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

func parseFeed(markup string, base *url.URL) ([]ListItem, error) {
	feed, err := gofeed.NewParser().ParseString(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]ListItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		link, ok := resolve(base, entry.Link)
		if !ok {
			continue
		}

		var date time.Time
		switch {
		case entry.PublishedParsed != nil:
			date = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			date = *entry.UpdatedParsed
		default:
			continue
		}

		items = append(items, ListItem{
			URL:   link,
			Date:  date,
			Title: collapseSpaces(entry.Title),
		})
	}
	return items, nil
}

// readRow turns one list row into a ListItem.
func readRow(row *goquery.Selection, base *url.URL, cfg scraper.ListConfig) (ListItem, bool) {
	link := row.Find(cfg.LinkSelector).First()
	if link.Length() == 0 {
		return ListItem{}, false
	}
	href, _ := link.Attr("href")
	target, ok := resolve(base, href)
	if !ok {
		return ListItem{}, false
	}

	date, ok := rowDate(row, cfg)
	if !ok {
		return ListItem{}, false
	}

	title, _ := link.Attr("title")
	title = collapseSpaces(title)
	if title == "" {
		title = collapseSpaces(link.Text())
	}

	return ListItem{URL: target, Date: date, Title: title}, true
}

// rowDate tries each date selector in order, then the whole row text.
func rowDate(row *goquery.Selection, cfg scraper.ListConfig) (time.Time, bool) {
	for _, sel := range cfg.DateSelectors {
		if d, ok := parseDate(row.Find(sel).First().Text(), cfg); ok {
			return d, true
		}
	}
	return parseDate(row.Text(), cfg)
}

func parseDate(text string, cfg scraper.ListConfig) (time.Time, bool) {
	m := cfg.DateRegexp().FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	raw := m[0]
	if len(m) > 1 {
		raw = m[1]
	}

	d, err := time.Parse(cfg.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// resolve makes href absolute against base. Only http(s) targets are kept.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
