// Package resolver maps a listing's target URL to the concrete asset URLs that
// should be downloaded. Imgur albums are expanded by scanning the album page
// for image hashes; everything else passes through untouched.
package resolver

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	errs "redditdl/pkg/errors"
	"redditdl/pkg/logger"
	"redditdl/pkg/reddit"
)

const (
	imgurHost = "imgur.com"

	// DirectImageTemplate turns an album hash into a direct image URL
	DirectImageTemplate = "http://i.imgur.com/%s.jpg"
)

var hashPattern = regexp.MustCompile(`"hash":"([^"]*)"`)

// imageExtensions are suffixes that mark an imgur URL as a direct image link
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".gifv": true,
	".webp": true,
}

// Resolver expands target URLs into asset URLs
type Resolver struct {
	client reddit.Getter
	logger logger.Logger
}

// New creates a Resolver that fetches album pages through client
func New(client reddit.Getter, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{client: client, logger: log}
}

// Resolve returns the asset URLs behind targetURL. An album with no hashes
// resolves to an empty slice without error.
func (r *Resolver) Resolve(ctx context.Context, targetURL string) ([]string, error) {
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil || u.Host == "" {
		return nil, errs.New(errs.ErrorTypeParsing, 0, fmt.Sprintf("invalid target URL %q", targetURL), err)
	}

	if !isImgurHost(u.Hostname()) {
		return []string{targetURL}, nil
	}

	if isAlbumPath(u.Path) {
		return r.expandAlbum(ctx, targetURL)
	}

	if !imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		r.logger.WarnWithFields("imgur URL is neither an album nor a direct image, passing through", map[string]interface{}{
			"url": targetURL,
		})
	}
	return []string{targetURL}, nil
}

func (r *Resolver) expandAlbum(ctx context.Context, albumURL string) ([]string, error) {
	resp, err := r.client.Get(ctx, albumURL)
	if err != nil {
		return nil, fmt.Errorf("fetch album %s: %w", albumURL, err)
	}

	if ct := resp.ContentType(); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "text/html" {
			r.logger.DebugWithFields("album page is not HTML", map[string]interface{}{
				"url":          albumURL,
				"content_type": ct,
			})
			return []string{}, nil
		}
	}

	urls := ExtractHashes(string(resp.Body))
	for i, hash := range urls {
		urls[i] = fmt.Sprintf(DirectImageTemplate, hash)
	}

	r.logger.DebugWithFields("expanded album", map[string]interface{}{
		"url":    albumURL,
		"images": len(urls),
	})
	return urls, nil
}

// ExtractHashes returns distinct non-empty "hash" tokens in first-occurrence order
func ExtractHashes(body string) []string {
	matches := hashPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]bool, len(matches))
	hashes := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] == "" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		hashes = append(hashes, m[1])
	}
	return hashes
}

func isImgurHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == imgurHost || strings.HasSuffix(host, "."+imgurHost)
}

func isAlbumPath(p string) bool {
	return strings.HasPrefix(p, "/a/") || strings.HasPrefix(p, "/gallery/")
}
