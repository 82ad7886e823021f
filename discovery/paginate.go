package discovery

import (
	"context"
	"fmt"

	"github.com/pevans/govdigest/scraper"
	"go.uber.org/zap"
)

// PageVisitor receives the in-window items of one list page. It runs to
// completion before the next page is requested.
type PageVisitor func(page int, items []ListItem) error

// Paginate walks the list pages of one entry URL, newest first, and hands
// each page's in-window items to visit. It stops at the first page with no
// in-window item, when the scheme has no further page, when a page URL
// repeats, or when a page fails to fetch. Listings are assumed to be sorted
// by date, so later pages are never requested once a page is stale.
//
// An error is returned only when the first page cannot be fetched, when
// visit fails, or when ctx is done. Results from earlier pages are kept by
// the visitor either way.
func Paginate(
	ctx context.Context,
	fetcher Fetcher,
	adapter scraper.Adapter,
	entryURL string,
	window TimeWindow,
	logger *zap.Logger,
	visit PageVisitor,
) error {
	seen := make(map[string]bool)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL, ok := adapter.Pagination.PageURL(entryURL, n)
		if !ok || seen[pageURL] {
			return nil
		}
		seen[pageURL] = true

		markup, err := fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if n == 1 {
				return fmt.Errorf("failed to fetch first list page: %w", err)
			}
			logger.Debug("list page fetch failed, stopping",
				zap.String("url", pageURL),
				zap.Int("page", n),
				zap.Error(err))
			return nil
		}

		items, err := ParseList(markup, pageURL, adapter.List)
		if err != nil {
			logger.Warn("list page unparseable, stopping",
				zap.String("url", pageURL),
				zap.Int("page", n),
				zap.Error(err))
			return nil
		}

		recent := make([]ListItem, 0, len(items))
		for _, item := range items {
			if window.Contains(item.Date) {
				recent = append(recent, item)
			}
		}

		logger.Debug("list page parsed",
			zap.String("url", pageURL),
			zap.Int("page", n),
			zap.Int("items", len(items)),
			zap.Int("recent", len(recent)))

		if len(recent) == 0 {
			return nil
		}
		if err := visit(n, recent); err != nil {
			return err
		}
		if adapter.Pagination.SinglePage() {
			return nil
		}
	}
}
