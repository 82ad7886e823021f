package scraper

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed provinces.yaml
var builtinRegistry []byte

// Registry validation errors.
var (
	ErrNoAdapters             = errors.New("registry has no adapters")
	ErrMissingName            = errors.New("adapter name is required")
	ErrDuplicateName          = errors.New("adapter name is not unique")
	ErrNoEntryURLs            = errors.New("adapter needs at least one entry URL")
	ErrUnknownListStrategy    = errors.New("list.strategy must be rows, xml_records or feed")
	ErrUnknownArticleStrategy = errors.New("article.strategy must be heuristic or selector")
	ErrMissingContentSelector = errors.New("article.content_selector is required for the selector strategy")
	ErrUnknownWhitespaceMode  = errors.New("article.whitespace must be collapse or strip")
	ErrUnknownAdapter         = errors.New("unknown adapter")
)

// registryFile is the on-disk shape of an adapter registry.
type registryFile struct {
	Adapters []Adapter `yaml:"adapters"`
}

// Builtin returns the adapters compiled into the binary.
func Builtin() ([]Adapter, error) {
	return ParseRegistry(builtinRegistry)
}

// LoadRegistryFile reads an adapter registry from a YAML file.
func LoadRegistryFile(path string) ([]Adapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adapter registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes, defaults and validates a YAML adapter registry.
// Adapter order in the document is the registration order.
func ParseRegistry(data []byte) ([]Adapter, error) {
	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse adapter registry: %w", err)
	}

	if len(reg.Adapters) == 0 {
		return nil, ErrNoAdapters
	}

	seen := make(map[string]bool, len(reg.Adapters))
	for i := range reg.Adapters {
		a := &reg.Adapters[i]
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("adapters[%d]: %w", i, err)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, a.Name)
		}
		seen[a.Name] = true

		if err := a.ApplyDefaults(); err != nil {
			return nil, fmt.Errorf("adapters[%d]: %w", i, err)
		}
	}

	return reg.Adapters, nil
}

// Validate checks the fields that have no sensible default.
func (a *Adapter) Validate() error {
	if a.Name == "" {
		return ErrMissingName
	}
	if len(a.EntryURLs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoEntryURLs, a.Name)
	}

	switch a.List.Strategy {
	case "", ListRows, ListXMLRecords, ListFeed:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownListStrategy, a.Name)
	}

	switch a.Article.Strategy {
	case "", ArticleHeuristic:
	case ArticleSelector:
		if a.Article.ContentSelector == "" {
			return fmt.Errorf("%w: %s", ErrMissingContentSelector, a.Name)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownArticleStrategy, a.Name)
	}

	switch a.Article.Whitespace {
	case "", WhitespaceCollapse, WhitespaceStrip:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownWhitespaceMode, a.Name)
	}

	return nil
}

// Find returns the adapter with the given name.
func Find(adapters []Adapter, name string) (Adapter, error) {
	for _, a := range adapters {
		if a.Name == name {
			return a, nil
		}
	}
	return Adapter{}, fmt.Errorf("%w: %s", ErrUnknownAdapter, name)
}

// Enabled filters out disabled adapters, keeping registration order.
func Enabled(adapters []Adapter) []Adapter {
	out := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if !a.Disabled {
			out = append(out, a)
		}
	}
	return out
}
