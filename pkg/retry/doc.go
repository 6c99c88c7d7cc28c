// Package retry provides exponential backoff and retry logic for transient
// failures, classified through pkg/errors.
//
// Nothing in the download core retries on its own. The CLI decides whether to
// wrap the listing fetcher:
//
//	pager := retry.WrapPageFetcher(fetcher, retry.FromConfig(cfg.Retry, log))
//
// With max_attempts set to 1 (the default) the fetcher is returned unwrapped.
// Only timeouts, network failures, 429s and 5xx responses are retried; a
// malformed page fails immediately.
package retry
