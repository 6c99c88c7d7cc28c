package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"redditdl/pkg/config"
	errs "redditdl/pkg/errors"
	"redditdl/pkg/logger"
	"redditdl/pkg/models"
	"redditdl/pkg/reddit"
	"redditdl/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGetter serves canned assets and counts requests per URL
type mockGetter struct {
	mu        sync.Mutex
	responses map[string]*reddit.Response
	failures  map[string]error
	calls     map[string]int
}

func newMockGetter() *mockGetter {
	return &mockGetter{
		responses: make(map[string]*reddit.Response),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (m *mockGetter) serve(url, contentType, body string) {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	m.responses[url] = &reddit.Response{URL: url, StatusCode: 200, Header: h, Body: []byte(body)}
}

func (m *mockGetter) Get(ctx context.Context, rawURL string) (*reddit.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[rawURL]++
	if err, ok := m.failures[rawURL]; ok {
		return nil, err
	}
	if resp, ok := m.responses[rawURL]; ok {
		return resp, nil
	}
	return nil, errs.New(errs.ErrorTypeNotFound, 404, "not found", nil)
}

func (m *mockGetter) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// mockResolver maps target URLs to asset lists
type mockResolver struct {
	mu     sync.Mutex
	assets map[string][]string
	err    error
	calls  int
}

func (r *mockResolver) Resolve(ctx context.Context, targetURL string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if urls, ok := r.assets[targetURL]; ok {
		return urls, nil
	}
	return []string{targetURL}, nil
}

// failingStore accepts claims but refuses to write
type failingStore struct{}

func (failingStore) Claim(string) bool { return true }
func (failingStore) Release(string)    {}
func (failingStore) SaveAsset(io.Reader, string, string) (string, error) {
	return "", errs.New(errs.ErrorTypeStorage, 0, "disk full", nil)
}

func newStore(t *testing.T) (*storage.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := storage.NewManager(dir, 0)
	require.NoError(t, err)
	return m, dir
}

func TestProcessListingDownloadsSingleAsset(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://i.imgur.com/x.jpg", "image/jpeg", "jpegdata")
	store, dir := newStore(t)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	link := models.Link{Name: "t3_a", Title: "Sunset/Lake", URL: "http://i.imgur.com/x.jpg", Score: 10}
	outcome := engine.ProcessListing(context.Background(), link, Criteria{}, store)

	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 1, outcome.Downloaded)
	assert.Equal(t, 0, outcome.Skipped)
	assert.Equal(t, 0, outcome.Errors)
	require.Len(t, outcome.Assets, 1)
	assert.Equal(t, StatusDownloaded, outcome.Assets[0].Status)

	data, err := os.ReadFile(filepath.Join(dir, "Sunset-Lake.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
}

func TestProcessListingAlbumSuffixes(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://i.imgur.com/aaa.jpg", "image/jpeg", "a")
	getter.serve("http://i.imgur.com/bbb.jpg", "image/png", "b")
	resolver := &mockResolver{assets: map[string][]string{
		"http://imgur.com/a/xyz": {"http://i.imgur.com/aaa.jpg", "http://i.imgur.com/bbb.jpg"},
	}}
	store, dir := newStore(t)
	engine := NewEngine(getter, resolver, logger.NewTestLogger())

	link := models.Link{Name: "t3_b", Title: "My Album", URL: "http://imgur.com/a/xyz", Score: 5}
	outcome := engine.ProcessListing(context.Background(), link, Criteria{}, store)

	assert.Equal(t, 2, outcome.Downloaded)
	assert.FileExists(t, filepath.Join(dir, "My Album_0.jpg"))
	assert.FileExists(t, filepath.Join(dir, "My Album_1.png"))
}

func TestProcessListingAlbumWithLongTitle(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://i.imgur.com/aaa.jpg", "image/jpeg", "a")
	getter.serve("http://i.imgur.com/bbb.jpg", "image/jpeg", "b")
	resolver := &mockResolver{assets: map[string][]string{
		"http://imgur.com/a/long": {"http://i.imgur.com/aaa.jpg", "http://i.imgur.com/bbb.jpg"},
	}}
	store, dir := newStore(t)
	engine := NewEngine(getter, resolver, logger.NewTestLogger())

	link := models.Link{Name: "t3_c", Title: strings.Repeat("t", 290), URL: "http://imgur.com/a/long", Score: 5}
	outcome := engine.ProcessListing(context.Background(), link, Criteria{}, store)

	assert.Equal(t, 2, outcome.Downloaded)
	assert.Equal(t, 0, outcome.Skipped)
	assert.Equal(t, 2, getter.totalCalls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for i, entry := range entries {
		assert.True(t, strings.HasSuffix(entry.Name(), fmt.Sprintf("_%d.jpg", i)), entry.Name())
		assert.LessOrEqual(t, len(entry.Name()), storage.DefaultMaxFilenameLength)
	}
}

// panickingStore wraps a real manager but blows up while saving
type panickingStore struct {
	*storage.Manager
}

func (panickingStore) SaveAsset(io.Reader, string, string) (string, error) {
	panic("write exploded")
}

func TestProcessListingPanicReleasesClaim(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://h/a.jpg", "image/jpeg", "jpg")
	manager, _ := newStore(t)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	link := models.Link{Title: "boom", URL: "http://h/a.jpg"}
	assert.Panics(t, func() {
		engine.ProcessListing(context.Background(), link, Criteria{}, panickingStore{manager})
	})

	assert.True(t, manager.Claim("boom"), "claim must not leak past a panic")
}

func TestProcessListingFilteredMakesNoRequests(t *testing.T) {
	getter := newMockGetter()
	resolver := &mockResolver{}
	store, _ := newStore(t)
	engine := NewEngine(getter, resolver, logger.NewTestLogger())

	criteria := Criteria{MinScore: 100}
	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "low", URL: "http://x/y.jpg", Score: 3}, criteria, store)

	assert.Equal(t, Outcome{Processed: 1, Skipped: 1, Reason: SkipLowScore}, outcome)
	assert.Zero(t, resolver.calls)
	assert.Zero(t, getter.totalCalls())
}

func TestProcessListingAlreadyDownloaded(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://i.imgur.com/x.jpg", "image/jpeg", "new")
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Sunset.png"), []byte("old"), 0644))
	// rescan to pick up the pre-existing file
	store, err := storage.NewManager(dir, 0)
	require.NoError(t, err)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "Sunset", URL: "http://i.imgur.com/x.jpg"}, Criteria{}, store)

	assert.Equal(t, 1, outcome.Skipped)
	assert.True(t, outcome.Existing)
	assert.Equal(t, SkipAlreadyDownloaded, outcome.Assets[0].Reason)
	assert.Zero(t, getter.totalCalls())
}

func TestProcessListingResolutionFailure(t *testing.T) {
	resolveErr := errs.New(errs.ErrorTypeTimeout, 0, "request timed out", nil)
	getter := newMockGetter()
	store, _ := newStore(t)
	engine := NewEngine(getter, &mockResolver{err: resolveErr}, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "t", URL: "http://imgur.com/a/x"}, Criteria{}, store)

	assert.Equal(t, 1, outcome.Errors)
	assert.Empty(t, outcome.Assets)
	assert.ErrorIs(t, outcome.Err, resolveErr)
	assert.Zero(t, getter.totalCalls())
}

func TestProcessListingFetchFailureContinues(t *testing.T) {
	getter := newMockGetter()
	getter.failures["http://h/1.jpg"] = errs.New(errs.ErrorTypeNetwork, 0, "connection reset", nil)
	getter.serve("http://h/2.jpg", "image/jpeg", "ok")
	resolver := &mockResolver{assets: map[string][]string{"http://album": {"http://h/1.jpg", "http://h/2.jpg"}}}
	store, _ := newStore(t)
	engine := NewEngine(getter, resolver, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "pair", URL: "http://album"}, Criteria{}, store)

	assert.Equal(t, 1, outcome.Errors)
	assert.Equal(t, 1, outcome.Downloaded)
	assert.Equal(t, StatusFailed, outcome.Assets[0].Status)
	// a failed asset releases its claim so a later run can retry it
	assert.True(t, store.Claim("pair_0"))
}

func TestProcessListingUnsupportedType(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://h/page", "text/html; charset=utf-8", "<html>")
	store, _ := newStore(t)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "page", URL: "http://h/page"}, Criteria{}, store)

	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 0, outcome.Errors)
	assert.Equal(t, SkipUnsupportedType, outcome.Assets[0].Reason)
	assert.False(t, outcome.Existing)
	assert.False(t, store.IsDownloaded("page"))
}

func TestProcessListingSaveFailure(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://h/a.gif", "image/gif", "gif")
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "anim", URL: "http://h/a.gif"}, Criteria{}, failingStore{})

	assert.Equal(t, 1, outcome.Errors)
	assert.True(t, errs.Is(outcome.Assets[0].Err, errs.ErrorTypeStorage))
}

func TestProcessListingEmptyIdentifierFallsBackToName(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://h/a.png", "", "png")
	store, dir := newStore(t)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Name: "t3_zz", Title: "...", URL: "http://h/a.png"}, Criteria{}, store)

	assert.Equal(t, 1, outcome.Downloaded)
	assert.FileExists(t, filepath.Join(dir, "t3_zz.png"))
}

func TestProcessListingEmptyAlbum(t *testing.T) {
	resolver := &mockResolver{assets: map[string][]string{"http://imgur.com/a/none": {}}}
	store, _ := newStore(t)
	engine := NewEngine(newMockGetter(), resolver, logger.NewTestLogger())

	outcome := engine.ProcessListing(context.Background(), models.Link{Title: "none", URL: "http://imgur.com/a/none"}, Criteria{}, store)
	assert.Equal(t, Outcome{Processed: 1}, outcome)
}

func TestCriteriaEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		link     models.Link
		expected SkipReason
	}{
		{"accepts", Criteria{}, models.Link{Title: "x"}, SkipNone},
		{"low score", Criteria{MinScore: 10}, models.Link{Score: 9}, SkipLowScore},
		{"score first", Criteria{MinScore: 10, SFWOnly: true}, models.Link{Score: 1, NSFW: true}, SkipLowScore},
		{"sfw only", Criteria{SFWOnly: true}, models.Link{NSFW: true}, SkipNSFW},
		{"nsfw only", Criteria{NSFWOnly: true}, models.Link{NSFW: false}, SkipNotNSFW},
		{"both flags is no-op", Criteria{SFWOnly: true, NSFWOnly: true}, models.Link{NSFW: true}, SkipNone},
		{"title mismatch", Criteria{TitlePattern: regexp.MustCompile(`^\[OC\]`)}, models.Link{Title: "Lake"}, SkipTitleMismatch},
		{"unanchored match", Criteria{TitlePattern: regexp.MustCompile(`lake`)}, models.Link{Title: "A lake at dawn"}, SkipNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, skip := tt.criteria.Evaluate(tt.link)
			assert.Equal(t, tt.expected, reason)
			assert.Equal(t, tt.expected != SkipNone, skip)
		})
	}
}

func TestNewCriteria(t *testing.T) {
	c, err := NewCriteria(config.FilterConfig{MinScore: 5, TitlePattern: "cat"})
	require.NoError(t, err)
	assert.Equal(t, 5, c.MinScore)
	require.NotNil(t, c.TitlePattern)

	_, err = NewCriteria(config.FilterConfig{TitlePattern: "("})
	require.Error(t, err)
}

func TestAssetIdentifier(t *testing.T) {
	assert.Equal(t, "a-b-c", AssetIdentifier("a/b/c"))
	assert.Equal(t, "hidden", AssetIdentifier("..hidden"))
	assert.Equal(t, "x.y", AssetIdentifier("x.y"))
	assert.Equal(t, "", AssetIdentifier("..."))
	assert.Equal(t, AssetIdentifier("Same Title"), AssetIdentifier("Same Title"))
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		ext         string
		ok          bool
	}{
		{"header wins over suffix", "image/png", "http://h/a.jpg", ".png", true},
		{"header with params", "image/jpeg; charset=binary", "http://h/a", ".jpg", true},
		{"header rejects html", "text/html", "http://h/a.jpg", "", false},
		{"suffix jpeg", "", "http://h/a.JPEG", ".jpg", true},
		{"suffix with query", "", "http://h/a.gif?x=1", ".gif", true},
		{"suffix webp", "", "http://h/a.webp", ".webp", true},
		{"unknown suffix", "", "http://h/a.mp4", "", false},
		{"no suffix", "", "http://h/a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ext, ok := DetectType(tt.contentType, tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestProcessListingSharedStoreFetchesOnce(t *testing.T) {
	getter := newMockGetter()
	getter.serve("http://h/a.jpg", "image/jpeg", "x")
	store, _ := newStore(t)
	engine := NewEngine(getter, &mockResolver{}, logger.NewTestLogger())
	link := models.Link{Title: "dup", URL: "http://h/a.jpg"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.ProcessListing(context.Background(), link, Criteria{}, store)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, getter.totalCalls())
}
