package discovery

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/govdigest/scraper"
	"golang.org/x/net/html"
)

// ErrNoContent is returned when a detail page has no block that looks like
// an article body. Callers skip the item.
var ErrNoContent = errors.New("no article content found")

// RawText is the cleaned body text of a detail page plus whatever title and
// publish date could be read for it.
type RawText struct {
	Text  string
	Title string
	Date  string
}

// Scorer picks the article body among candidate blocks, or returns nil when
// none qualifies.
type Scorer interface {
	Select(candidates *goquery.Selection) *goquery.Selection
}

// FirstAboveThreshold selects the first candidate, in document order, whose
// text is longer than MinChars runes and spans more than MinLines lines.
// Lines are the markup's own line breaks, so a menu of links written on
// one line counts as a single line.
type FirstAboveThreshold struct {
	MinChars int
	MinLines int
}

// Select implements Scorer.
func (f FirstAboveThreshold) Select(candidates *goquery.Selection) *goquery.Selection {
	var picked *goquery.Selection
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := markupText(s)
		if utf8.RuneCountInString(text) > f.MinChars && strings.Count(text, "\n")+1 > f.MinLines {
			picked = s
			return false
		}
		return true
	})
	return picked
}

// Extractor turns detail page markup into RawText for one adapter.
type Extractor struct {
	cfg     scraper.ArticleConfig
	cleanup []scraper.CleanupRule
	scorer  Scorer
}

// NewExtractor creates an extractor for the adapter's article settings. The
// heuristic strategy uses FirstAboveThreshold unless WithScorer overrides it.
func NewExtractor(adapter scraper.Adapter) *Extractor {
	return &Extractor{
		cfg:     adapter.Article,
		cleanup: adapter.Cleanup,
		scorer: FirstAboveThreshold{
			MinChars: adapter.Article.MinChars,
			MinLines: adapter.Article.MinLines,
		},
	}
}

// WithScorer replaces the heuristic scorer.
func (e *Extractor) WithScorer(s Scorer) *Extractor {
	e.scorer = s
	return e
}

// Extract locates the article body, strips noise, normalizes and cleans the
// text, and composes the optional header. Title and date fall back to the
// list item's when the page does not expose them.
func (e *Extractor) Extract(markup string, item ListItem) (RawText, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return RawText{}, fmt.Errorf("failed to parse article page: %w", err)
	}

	// Metadata first: noise removal below mutates the document.
	raw := RawText{
		Title: e.title(doc, item),
		Date:  e.date(doc, item),
	}

	block := e.locate(doc)
	if block == nil || block.Length() == 0 {
		return RawText{}, ErrNoContent
	}

	block.Find(strings.Join(e.cfg.RemoveSelectors(), ", ")).Remove()

	if len(e.cfg.BoilerplateKeywords) > 0 {
		block.Find("p").Each(func(_ int, p *goquery.Selection) {
			if containsAny(p.Text(), e.cfg.BoilerplateKeywords) {
				p.Remove()
			}
		})
	}

	var text string
	if e.cfg.ParagraphsOnly {
		text = paragraphs(block)
	} else {
		text = flatten(block)
	}
	text = Clean(text, e.cfg.Whitespace, e.cleanup)
	if text == "" {
		return RawText{}, ErrNoContent
	}

	if e.cfg.Header != "" {
		text = strings.NewReplacer(
			"{title}", raw.Title,
			"{date}", raw.Date,
			"{text}", text,
		).Replace(e.cfg.Header)
		text = NormalizeWhitespace(text, e.cfg.Whitespace)
	}
	raw.Text = text

	return raw, nil
}

func (e *Extractor) locate(doc *goquery.Document) *goquery.Selection {
	if e.cfg.Strategy == scraper.ArticleSelector {
		return doc.Find(e.cfg.ContentSelector).First()
	}
	return e.scorer.Select(doc.Find(e.cfg.CandidateSelector))
}

func (e *Extractor) title(doc *goquery.Document, item ListItem) string {
	if e.cfg.TitleSelector != "" {
		if t := readField(doc, e.cfg.TitleSelector, e.cfg.TitleAttr); t != "" {
			return t
		}
	}
	return item.Title
}

func (e *Extractor) date(doc *goquery.Document, item ListItem) string {
	if e.cfg.DateSelector != "" {
		d := readField(doc, e.cfg.DateSelector, e.cfg.DateAttr)
		if e.cfg.DateTrimPrefix != "" {
			if _, after, ok := strings.Cut(d, e.cfg.DateTrimPrefix); ok {
				d = strings.TrimSpace(after)
			}
		}
		if e.cfg.DateLength > 0 {
			d = truncateRunes(d, e.cfg.DateLength)
		}
		if d != "" {
			return d
		}
	}
	if item.Date.IsZero() {
		return ""
	}
	return item.Date.Format("2006-01-02")
}

func readField(doc *goquery.Document, selector, attr string) string {
	sel := doc.Find(selector).First()
	if attr != "" {
		v, _ := sel.Attr(attr)
		return collapseSpaces(v)
	}
	return collapseSpaces(sel.Text())
}

// markupText concatenates the text nodes under s as they appear in the
// markup, skipping script and style, and trims the result.
func markupText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}

// flatten joins the trimmed, non-empty text nodes under s with newlines.
func flatten(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// paragraphs joins the non-empty <p> texts under s with newlines.
func paragraphs(s *goquery.Selection) string {
	var parts []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
