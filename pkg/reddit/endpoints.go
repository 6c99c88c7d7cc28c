package reddit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"redditdl/pkg/models"
)

const (
	// BaseURL is the public reddit host
	BaseURL = "https://www.reddit.com"

	// DefaultPageSize is the number of listings requested per page when no size is given
	DefaultPageSize = 25

	// MaxPageSize is the upstream hard cap on items per page
	MaxPageSize = 100
)

// ClampPageSize maps a requested page size into [1, MaxPageSize]
func ClampPageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// ListingURL builds GET {base}/r/{subject}.json?limit={n}[&after=t3_{cursor}]
func ListingURL(base, subject string, cursor models.Cursor, limit int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(ClampPageSize(limit)))
	if after := cursor.Fullname(); after != "" {
		params.Set("after", after)
	}

	return fmt.Sprintf("%s/r/%s.json?%s", strings.TrimRight(base, "/"), url.PathEscape(subject), params.Encode())
}
