package reddit

import "redditdl/pkg/models"

// listingResponse mirrors {data: {children: [{data: {...}}], after: "t3_..."}}.
// Pointers distinguish absent fields from zero values so a page missing
// required fields is rejected rather than half-decoded.
type listingResponse struct {
	Kind string       `json:"kind"`
	Data *listingData `json:"data"`
}

type listingData struct {
	Children *[]listingChild `json:"children"`
	After    *string         `json:"after"`
}

type listingChild struct {
	Kind string    `json:"kind"`
	Data *linkData `json:"data"`
}

type linkData struct {
	ID     *string `json:"id"`
	Name   *string `json:"name"`
	Title  *string `json:"title"`
	URL    *string `json:"url"`
	Score  *int    `json:"score"`
	Over18 *bool   `json:"over_18"`
}

// Page is one decoded listing page
type Page struct {
	Links []models.Link
	// Next is the cursor for the following page; empty means end of listing
	Next models.Cursor
}
