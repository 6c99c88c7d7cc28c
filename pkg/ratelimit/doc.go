// Package ratelimit provides the process-wide request gate for redditdl.
//
// Every outbound request (listing pages, album pages, asset bodies) passes
// through one IntervalLimiter shared by all workers. It gives two guarantees:
//
//   - at most one request is in flight at any instant, because the lock taken by
//     Acquire is held until the caller releases it after reading the response
//   - consecutive request start times are at least the configured interval apart
//
// The interval is clamped to a floor (the upstream API's politeness limit); a
// slow request consumes its own budget, so no extra delay stacks up behind it.
//
// Usage:
//
//	limiter := ratelimit.NewIntervalLimiter(2*time.Second, 2*time.Second, log)
//
//	release, err := limiter.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
//	// perform the request and read the body
package ratelimit
