package scraper

import (
	"fmt"
	"regexp"
	"time"
)

// List page strategies.
const (
	ListRows       = "rows"
	ListXMLRecords = "xml_records"
	ListFeed       = "feed"
)

// Article extraction strategies.
const (
	ArticleHeuristic = "heuristic"
	ArticleSelector  = "selector"
)

// Whitespace normalization modes.
const (
	WhitespaceCollapse = "collapse"
	WhitespaceStrip    = "strip"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultRowSelector       = "li"
	DefaultLinkSelector      = "a"
	DefaultDatePattern       = `\d{4}-\d{2}-\d{2}`
	DefaultDateLayout        = "2006-01-02"
	DefaultRecordScript      = `script[type="text/xml"]`
	DefaultCandidateSelector = "div"
	DefaultMinChars          = 200
	DefaultMinLines          = 3
	DefaultMaxPages          = 50
)

// DefaultRemoveSelectors are stripped from every selected content block
// before its text is flattened.
var DefaultRemoveSelectors = []string{"nav", "header", "footer", "aside", "script", "style"}

// Adapter describes one province news site: where its list pages live, how
// to read them, and how to turn an article page into digest text. Adapters
// are loaded once and never mutated afterwards.
type Adapter struct {
	Name            string           `yaml:"name" json:"name"`
	Label           string           `yaml:"label" json:"label"`
	EntryURLs       []string         `yaml:"entry_urls" json:"entry_urls"`
	Pagination      PaginationConfig `yaml:"pagination" json:"pagination"`
	List            ListConfig       `yaml:"list" json:"list"`
	Article         ArticleConfig    `yaml:"article" json:"article"`
	Cleanup         []CleanupRule    `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`
	MaxContentChars int              `yaml:"max_content_chars,omitempty" json:"max_content_chars,omitempty"`
	RequestDelay    time.Duration    `yaml:"request_delay,omitempty" json:"request_delay,omitempty"`
	Disabled        bool             `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// ListConfig defines how list pages are turned into dated article links.
type ListConfig struct {
	Strategy      string   `yaml:"strategy" json:"strategy"` // "rows", "xml_records" or "feed"
	Container     string   `yaml:"container,omitempty" json:"container,omitempty"`
	RowSelector   string   `yaml:"row_selector,omitempty" json:"row_selector,omitempty"`
	LinkSelector  string   `yaml:"link_selector,omitempty" json:"link_selector,omitempty"`
	DateSelectors []string `yaml:"date_selectors,omitempty" json:"date_selectors,omitempty"`
	DatePattern   string   `yaml:"date_pattern,omitempty" json:"date_pattern,omitempty"`
	DateLayout    string   `yaml:"date_layout,omitempty" json:"date_layout,omitempty"` // Go time layout
	RecordScript  string   `yaml:"record_script,omitempty" json:"record_script,omitempty"`

	dateRe *regexp.Regexp
}

// ArticleConfig defines how body text and metadata are read from an
// article page.
type ArticleConfig struct {
	Strategy            string   `yaml:"strategy" json:"strategy"` // "heuristic" or "selector"
	ContentSelector     string   `yaml:"content_selector,omitempty" json:"content_selector,omitempty"`
	CandidateSelector   string   `yaml:"candidate_selector,omitempty" json:"candidate_selector,omitempty"`
	MinChars            int      `yaml:"min_chars,omitempty" json:"min_chars,omitempty"`
	MinLines            int      `yaml:"min_lines,omitempty" json:"min_lines,omitempty"`
	ExtraRemove         []string `yaml:"extra_remove,omitempty" json:"extra_remove,omitempty"`
	BoilerplateKeywords []string `yaml:"boilerplate_keywords,omitempty" json:"boilerplate_keywords,omitempty"`
	ParagraphsOnly      bool     `yaml:"paragraphs_only,omitempty" json:"paragraphs_only,omitempty"`
	Whitespace          string   `yaml:"whitespace,omitempty" json:"whitespace,omitempty"`
	TitleSelector       string   `yaml:"title_selector,omitempty" json:"title_selector,omitempty"`
	TitleAttr           string   `yaml:"title_attr,omitempty" json:"title_attr,omitempty"`
	DateSelector        string   `yaml:"date_selector,omitempty" json:"date_selector,omitempty"`
	DateAttr            string   `yaml:"date_attr,omitempty" json:"date_attr,omitempty"`
	DateTrimPrefix      string   `yaml:"date_trim_prefix,omitempty" json:"date_trim_prefix,omitempty"`
	DateLength          int      `yaml:"date_length,omitempty" json:"date_length,omitempty"`
	Header              string   `yaml:"header,omitempty" json:"header,omitempty"` // uses {title}, {date}, {text}
}

// CleanupRule is one site-specific redaction applied to normalized text.
type CleanupRule struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`

	re *regexp.Regexp
}

// ApplyDefaults fills unset fields and compiles every pattern the adapter
// carries. It must be called before the adapter is used.
func (a *Adapter) ApplyDefaults() error {
	a.List.applyDefaults()
	a.Article.applyDefaults()
	if a.Pagination.First == "" {
		a.Pagination.First = "{base}"
	}
	if a.Pagination.MaxPages <= 0 {
		a.Pagination.MaxPages = DefaultMaxPages
	}

	re, err := regexp.Compile(a.List.DatePattern)
	if err != nil {
		return fmt.Errorf("%s: list.date_pattern: %w", a.Name, err)
	}
	a.List.dateRe = re

	for i := range a.Cleanup {
		re, err := regexp.Compile(a.Cleanup[i].Pattern)
		if err != nil {
			return fmt.Errorf("%s: cleanup[%d]: %w", a.Name, i, err)
		}
		a.Cleanup[i].re = re
	}

	return nil
}

// ContentLimit returns the adapter's truncation budget, falling back to the
// process-wide value.
func (a *Adapter) ContentLimit(global int) int {
	if a.MaxContentChars > 0 {
		return a.MaxContentChars
	}
	return global
}

func (l *ListConfig) applyDefaults() {
	if l.Strategy == "" {
		l.Strategy = ListRows
	}
	if l.RowSelector == "" {
		l.RowSelector = DefaultRowSelector
	}
	if l.LinkSelector == "" {
		l.LinkSelector = DefaultLinkSelector
	}
	if l.DatePattern == "" {
		l.DatePattern = DefaultDatePattern
	}
	if l.DateLayout == "" {
		l.DateLayout = DefaultDateLayout
	}
	if l.RecordScript == "" {
		l.RecordScript = DefaultRecordScript
	}
}

// DateRegexp returns the compiled date pattern. Patterns with a capture
// group yield the first group; otherwise the whole match.
func (l *ListConfig) DateRegexp() *regexp.Regexp {
	if l.dateRe == nil {
		l.dateRe = regexp.MustCompile(l.DatePattern)
	}
	return l.dateRe
}

func (c *ArticleConfig) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = ArticleHeuristic
	}
	if c.CandidateSelector == "" {
		c.CandidateSelector = DefaultCandidateSelector
	}
	if c.MinChars <= 0 {
		c.MinChars = DefaultMinChars
	}
	if c.MinLines <= 0 {
		c.MinLines = DefaultMinLines
	}
	if c.Whitespace == "" {
		c.Whitespace = WhitespaceCollapse
	}
}

// RemoveSelectors returns the default noise selectors followed by the
// adapter's extras.
func (c *ArticleConfig) RemoveSelectors() []string {
	out := make([]string, 0, len(DefaultRemoveSelectors)+len(c.ExtraRemove))
	out = append(out, DefaultRemoveSelectors...)
	return append(out, c.ExtraRemove...)
}

// Apply runs the rule against text.
func (r CleanupRule) Apply(text string) string {
	re := r.re
	if re == nil {
		re = regexp.MustCompile(r.Pattern)
	}
	return re.ReplaceAllString(text, r.Replacement)
}
