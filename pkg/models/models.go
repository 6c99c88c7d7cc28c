package models

import "strings"

// FullnamePrefix marks link ("t3") fullnames in the upstream API
const FullnamePrefix = "t3_"

// Cursor is a pagination position: the bare id of the last listing seen.
// The empty cursor means the start of the listing.
type Cursor string

// CursorFromFullname strips the link fullname prefix, so "t3_abc" and "abc" are the same cursor
func CursorFromFullname(after string) Cursor {
	return Cursor(strings.TrimPrefix(strings.TrimSpace(after), FullnamePrefix))
}

// Fullname returns the wire form of the cursor, or "" for the start of the listing
func (c Cursor) Fullname() string {
	if c == "" {
		return ""
	}
	return FullnamePrefix + string(c)
}

// Link is one listing item as produced by the fetcher
type Link struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Score int    `json:"score"`
	NSFW  bool   `json:"over_18"`
}

// Cursor returns the pagination position just after this link
func (l Link) Cursor() Cursor {
	if l.ID != "" {
		return Cursor(l.ID)
	}
	return CursorFromFullname(l.Name)
}
