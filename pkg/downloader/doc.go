// Package downloader turns one listing into files on disk.
//
// ProcessListing applies the run's Criteria, asks the Resolver for the asset
// URLs behind the listing, and fetches each asset through the shared
// rate-limited client. Every asset ends in one of three tagged states,
// downloaded, skipped or failed, and the listing's Outcome counts them. No
// failure escapes as an error: an album page that times out is one error in the
// Outcome and the caller moves on to the next listing.
package downloader
