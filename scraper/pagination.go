package scraper

import (
	"strconv"
	"strings"
)

// PaginationConfig maps a page index to a list page URL. Templates use
// {base} for the entry URL and {page} for the page index plus Offset.
//
//	first: "{base}.html"          next: "{base}_{page}.html"  offset: -1
//	first: "{base}"               next: "{base}_{page}.html"  trim: ".html"
//	first: "{base}?page={page}"   next: "{base}?page={page}"
//
// An empty Next means the site only has one list page per entry URL.
type PaginationConfig struct {
	First    string `yaml:"first,omitempty" json:"first,omitempty"`
	Next     string `yaml:"next,omitempty" json:"next,omitempty"`
	Trim     string `yaml:"trim,omitempty" json:"trim,omitempty"`
	Offset   int    `yaml:"offset,omitempty" json:"offset,omitempty"`
	MaxPages int    `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
}

// PageURL returns the URL of page n (1-based) for entryURL. ok is false when
// the scheme has no such page.
func (p PaginationConfig) PageURL(entryURL string, n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	if p.MaxPages > 0 && n > p.MaxPages {
		return "", false
	}

	page := strconv.Itoa(n + p.Offset)

	if n == 1 {
		first := p.First
		if first == "" {
			first = "{base}"
		}
		return expand(first, entryURL, page), true
	}

	if p.Next == "" {
		return "", false
	}

	base := entryURL
	if p.Trim != "" {
		base = strings.TrimSuffix(base, p.Trim)
	}
	return expand(p.Next, base, page), true
}

// SinglePage reports whether the scheme never goes past page 1.
func (p PaginationConfig) SinglePage() bool {
	return p.Next == ""
}

func expand(tmpl, base, page string) string {
	return strings.NewReplacer("{base}", base, "{page}", page).Replace(tmpl)
}
