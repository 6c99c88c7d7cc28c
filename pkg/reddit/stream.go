package reddit

import (
	"context"

	"redditdl/pkg/models"
)

// Stream is a lazy, single-use sequence of links across listing pages.
// It ends when the limit is reached, a page is empty, the next cursor is
// empty or already consumed, or a page fails (see Err).
type Stream struct {
	pager    PageFetcher
	subject  string
	cursor   models.Cursor
	limit    int
	pageSize int

	buf      []models.Link
	current  models.Link
	yielded  int
	consumed map[models.Cursor]bool
	done     bool
	err      error
}

// NewStream creates a stream reading subject from start through pager
func NewStream(pager PageFetcher, subject string, start models.Cursor, limit, pageSize int) *Stream {
	return &Stream{
		pager:    pager,
		subject:  subject,
		cursor:   start,
		limit:    limit,
		pageSize: ClampPageSize(pageSize),
		consumed: make(map[models.Cursor]bool),
	}
}

// Next advances to the next link, fetching a page when the buffer is empty
func (s *Stream) Next(ctx context.Context) bool {
	if s.limit > 0 && s.yielded >= s.limit {
		s.done = true
		s.buf = nil
		return false
	}

	for len(s.buf) == 0 {
		if s.done {
			return false
		}
		s.fetch(ctx)
	}

	s.current = s.buf[0]
	s.buf = s.buf[1:]
	s.yielded++
	return true
}

// Link returns the link produced by the last successful Next
func (s *Stream) Link() models.Link {
	return s.current
}

// Err returns the page error that ended the stream, if any
func (s *Stream) Err() error {
	return s.err
}

// Cursor returns the cursor of the page that will be fetched next
func (s *Stream) Cursor() models.Cursor {
	return s.cursor
}

// Yielded returns how many links have been produced so far
func (s *Stream) Yielded() int {
	return s.yielded
}

func (s *Stream) fetch(ctx context.Context) {
	size := s.pageSize
	if s.limit > 0 && s.limit-s.yielded < size {
		size = s.limit - s.yielded
	}

	s.consumed[s.cursor] = true
	page, err := s.pager.FetchPage(ctx, s.subject, s.cursor, size)
	if err != nil {
		s.err = err
		s.done = true
		return
	}

	if len(page.Links) == 0 {
		s.done = true
		return
	}
	s.buf = page.Links

	if page.Next == "" || s.consumed[page.Next] {
		s.done = true
		return
	}
	s.cursor = page.Next
}
