package retry

import (
	"context"

	"redditdl/pkg/models"
	"redditdl/pkg/reddit"
)

// PageFetcher retries transient page failures of the wrapped fetcher.
// Malformed pages and other non-retryable errors are returned at once.
type PageFetcher struct {
	next reddit.PageFetcher
	cfg  *Config
}

// WrapPageFetcher returns next unchanged when cfg allows a single attempt
func WrapPageFetcher(next reddit.PageFetcher, cfg *Config) reddit.PageFetcher {
	if cfg == nil || cfg.MaxAttempts == 1 {
		return next
	}
	return &PageFetcher{next: next, cfg: cfg}
}

// FetchPage implements reddit.PageFetcher
func (p *PageFetcher) FetchPage(ctx context.Context, subject string, cursor models.Cursor, limit int) (*reddit.Page, error) {
	return DoWithResult(ctx, func(ctx context.Context) (*reddit.Page, error) {
		return p.next.FetchPage(ctx, subject, cursor, limit)
	}, p.cfg)
}
