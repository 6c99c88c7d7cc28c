// Package reddit provides the listing fetcher for reddit's public JSON API.
//
// The package includes:
//   - Client, an HTTP client that sends every request through the shared
//     ratelimit.Limiter and classifies failures as *errors.Error
//   - Fetcher, which requests one listing page at a time and decodes it into
//     validated models.Link values
//   - Stream, a lazy, finite, single-use sequence of links across pages
//
// Example usage:
//
//	client := reddit.NewClient(reddit.ClientConfig{Timeout: 30 * time.Second}, limiter, log)
//	fetcher := reddit.NewFetcher(client, "https://www.reddit.com", 25, log)
//
//	stream := fetcher.FetchAll("earthporn", "", 100)
//	for stream.Next(ctx) {
//	    link := stream.Link()
//	    // handle link
//	}
//	if err := stream.Err(); err != nil {
//	    // the listing ended early: timeout, transport failure or malformed page
//	}
package reddit
