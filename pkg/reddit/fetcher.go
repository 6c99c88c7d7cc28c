package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	errs "redditdl/pkg/errors"
	"redditdl/pkg/logger"
	"redditdl/pkg/models"
)

// PageFetcher fetches a single listing page
type PageFetcher interface {
	FetchPage(ctx context.Context, subject string, cursor models.Cursor, limit int) (*Page, error)
}

// Getter is the request primitive the fetcher needs
type Getter interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// Fetcher retrieves listing pages for a subreddit
type Fetcher struct {
	client   Getter
	baseURL  string
	pageSize int
	logger   logger.Logger
}

// NewFetcher creates a Fetcher against baseURL
func NewFetcher(client Getter, baseURL string, pageSize int, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = BaseURL
	}

	return &Fetcher{
		client:   client,
		baseURL:  baseURL,
		pageSize: ClampPageSize(pageSize),
		logger:   log,
	}
}

// FetchPage requests up to limit items after cursor. Timeouts come back as
// ErrorTypeTimeout and undecodable pages as ErrorTypeParsing; neither means
// end of listing.
func (f *Fetcher) FetchPage(ctx context.Context, subject string, cursor models.Cursor, limit int) (*Page, error) {
	url := ListingURL(f.baseURL, subject, cursor, limit)

	f.logger.DebugWithFields("fetching listing page", map[string]interface{}{
		"subreddit": subject,
		"after":     string(cursor),
		"url":       url,
	})

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	page, err := decodePage(resp.Body)
	if err != nil {
		bodyPreview := string(resp.Body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		f.logger.WarnWithFields("malformed listing page", map[string]interface{}{
			"subreddit":    subject,
			"url":          url,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, errs.New(errs.ErrorTypeParsing, resp.StatusCode, err.Error(), err)
	}

	return page, nil
}

// FetchAll returns a lazy stream over the subject's listing starting after start.
// limit <= 0 means no item limit.
func (f *Fetcher) FetchAll(subject string, start models.Cursor, limit int) *Stream {
	return NewStream(f, subject, start, limit, f.pageSize)
}

// decodePage validates the nested listing shape and converts every child
func decodePage(body []byte) (*Page, error) {
	var raw listingResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("listing has no data object")
	}
	if raw.Data.Children == nil {
		return nil, fmt.Errorf("listing has no children array")
	}

	children := *raw.Data.Children
	page := &Page{Links: make([]models.Link, 0, len(children))}
	for i, child := range children {
		link, err := child.toLink()
		if err != nil {
			return nil, fmt.Errorf("listing item %d: %w", i, err)
		}
		page.Links = append(page.Links, link)
	}

	if raw.Data.After != nil {
		page.Next = models.CursorFromFullname(*raw.Data.After)
	}
	return page, nil
}

func (c listingChild) toLink() (models.Link, error) {
	d := c.Data
	if d == nil {
		return models.Link{}, fmt.Errorf("missing data object")
	}

	switch {
	case d.ID == nil && d.Name == nil:
		return models.Link{}, fmt.Errorf("missing id and name")
	case d.Title == nil:
		return models.Link{}, fmt.Errorf("missing title")
	case d.URL == nil:
		return models.Link{}, fmt.Errorf("missing url")
	case d.Score == nil:
		return models.Link{}, fmt.Errorf("missing score")
	case d.Over18 == nil:
		return models.Link{}, fmt.Errorf("missing over_18")
	}

	link := models.Link{
		Title: *d.Title,
		URL:   html.UnescapeString(*d.URL),
		Score: *d.Score,
		NSFW:  *d.Over18,
	}
	if d.ID != nil {
		link.ID = *d.ID
	}
	if d.Name != nil {
		link.Name = *d.Name
	} else {
		link.Name = models.FullnamePrefix + link.ID
	}
	if link.ID == "" {
		link.ID = string(models.CursorFromFullname(link.Name))
	}
	return link, nil
}
