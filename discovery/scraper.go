package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/pevans/govdigest/scraper"
	"go.uber.org/zap"
)

// DefaultContentLength is the digest truncation budget used when none is
// configured.
const DefaultContentLength = 350

// Scraper runs the full pipeline for one adapter: list pages, detail pages,
// extraction and assembly. It holds no per-run state and is safe for
// concurrent use by multiple adapters.
type Scraper struct {
	fetcher       Fetcher
	contentLength int
	logger        *zap.Logger
}

// NewScraper creates a scraper. contentLength is the process-wide
// truncation budget; adapters may override it.
func NewScraper(fetcher Fetcher, contentLength int, logger *zap.Logger) *Scraper {
	if contentLength <= 0 {
		contentLength = DefaultContentLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		fetcher:       fetcher,
		contentLength: contentLength,
		logger:        logger,
	}
}

// ScrapeAdapter returns the adapter's digests in entry URL order, then page
// order, then in-page order. Detail pages that fail to fetch or have no
// content are skipped. The run fails only when no entry URL could be
// listed at all, or when ctx is done.
func (s *Scraper) ScrapeAdapter(ctx context.Context, adapter scraper.Adapter, window TimeWindow) ([]string, error) {
	fetcher := NewPacedFetcher(s.fetcher, adapter.RequestDelay)
	extractor := NewExtractor(adapter)
	limit := adapter.ContentLimit(s.contentLength)
	logger := s.logger.With(zap.String("source", adapter.Name))

	digests := []string{}
	var failed int
	var lastErr error

	for _, entry := range adapter.EntryURLs {
		err := Paginate(ctx, fetcher, adapter, entry, window, logger, func(_ int, items []ListItem) error {
			for _, item := range items {
				if err := ctx.Err(); err != nil {
					return err
				}
				if digest, ok := s.digest(ctx, fetcher, extractor, adapter.Label, limit, item, logger); ok {
					digests = append(digests, digest)
				}
			}
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return digests, ctxErr
			}
			logger.Warn("entry URL failed", zap.String("url", entry), zap.Error(err))
			failed++
			lastErr = err
		}
	}

	if len(adapter.EntryURLs) > 0 && failed == len(adapter.EntryURLs) {
		return nil, fmt.Errorf("%s: all %d entry URLs failed: %w", adapter.Name, failed, lastErr)
	}
	return digests, nil
}

func (s *Scraper) digest(
	ctx context.Context,
	fetcher Fetcher,
	extractor *Extractor,
	label string,
	limit int,
	item ListItem,
	logger *zap.Logger,
) (string, bool) {
	markup, err := fetcher.Fetch(ctx, item.URL)
	if err != nil {
		logger.Warn("detail page fetch failed", zap.String("url", item.URL), zap.Error(err))
		return "", false
	}

	raw, err := extractor.Extract(markup, item)
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			logger.Debug("no content on detail page", zap.String("url", item.URL))
		} else {
			logger.Warn("detail page extraction failed", zap.String("url", item.URL), zap.Error(err))
		}
		return "", false
	}

	return Assemble(label, raw.Text, limit), true
}
