package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"redditdl/pkg/logger"
	"redditdl/pkg/models"
	"redditdl/pkg/reddit"
)

// Status tags the result of a single asset
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// AssetResult is the outcome for one resolved asset URL
type AssetResult struct {
	URL        string
	Identifier string
	Path       string
	Status     Status
	Reason     SkipReason
	Err        error
	Size       int
}

// Outcome summarises one listing. Processed is always 1.
type Outcome struct {
	Processed  int
	Downloaded int
	Skipped    int
	Errors     int

	// Existing is set when at least one asset was already stored
	Existing bool

	Reason SkipReason
	Err    error
	Assets []AssetResult
}

// Resolver expands a target URL into asset URLs
type Resolver interface {
	Resolve(ctx context.Context, targetURL string) ([]string, error)
}

// AssetStore is the per-directory storage the engine writes through
type AssetStore interface {
	Claim(identifier string) bool
	Release(identifier string)
	SaveAsset(r io.Reader, identifier, ext string) (string, error)
}

// Engine downloads the assets behind each listing
type Engine struct {
	client   reddit.Getter
	resolver Resolver
	logger   logger.Logger
}

// NewEngine creates an Engine that fetches assets through client
func NewEngine(client reddit.Getter, resolver Resolver, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{client: client, resolver: resolver, logger: log}
}

// ProcessListing filters, resolves and downloads one listing into store.
// Failures are counted in the Outcome, never returned.
func (e *Engine) ProcessListing(ctx context.Context, link models.Link, criteria Criteria, store AssetStore) Outcome {
	outcome := Outcome{Processed: 1}
	log := e.logger.WithFields(map[string]interface{}{
		"listing": link.Name,
		"title":   link.Title,
	})

	if reason, skip := criteria.Evaluate(link); skip {
		log.DebugWithFields("listing filtered", map[string]interface{}{
			"reason": string(reason),
			"score":  link.Score,
			"nsfw":   link.NSFW,
		})
		outcome.Skipped = 1
		outcome.Reason = reason
		return outcome
	}

	urls, err := e.resolver.Resolve(ctx, link.URL)
	if err != nil {
		log.WarnWithFields("failed to resolve listing", map[string]interface{}{
			"url":   link.URL,
			"error": err.Error(),
		})
		outcome.Errors = 1
		outcome.Err = err
		return outcome
	}

	identifier := AssetIdentifier(link.Title)
	if identifier == "" {
		identifier = link.Name
	}

	for i, assetURL := range urls {
		id := identifier
		if len(urls) > 1 {
			id = fmt.Sprintf("%s_%d", identifier, i)
		}

		result := e.downloadAsset(ctx, log, assetURL, id, store)
		switch result.Status {
		case StatusDownloaded:
			outcome.Downloaded++
		case StatusSkipped:
			outcome.Skipped++
			if result.Reason == SkipAlreadyDownloaded {
				outcome.Existing = true
			}
		case StatusFailed:
			outcome.Errors++
		}
		outcome.Assets = append(outcome.Assets, result)
	}

	return outcome
}

func (e *Engine) downloadAsset(ctx context.Context, log logger.Logger, assetURL, identifier string, store AssetStore) AssetResult {
	result := AssetResult{URL: assetURL, Identifier: identifier}

	if !store.Claim(identifier) {
		log.DebugWithFields("asset already downloaded", map[string]interface{}{
			"identifier": identifier,
		})
		result.Status = StatusSkipped
		result.Reason = SkipAlreadyDownloaded
		return result
	}

	// The claim is dropped on every path that does not store the asset,
	// including a panic further down.
	saved := false
	defer func() {
		if !saved {
			store.Release(identifier)
		}
	}()

	start := time.Now()
	resp, err := e.client.Get(ctx, assetURL)
	if err != nil {
		log.WarnWithFields("failed to fetch asset", map[string]interface{}{
			"url":   assetURL,
			"error": err.Error(),
		})
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	mediaType, ext, ok := DetectType(resp.ContentType(), assetURL)
	if !ok {
		log.InfoWithFields("skipping unsupported file type", map[string]interface{}{
			"url":  assetURL,
			"type": mediaType,
		})
		result.Status = StatusSkipped
		result.Reason = SkipUnsupportedType
		return result
	}

	path, err := store.SaveAsset(bytes.NewReader(resp.Body), identifier, ext)
	if err != nil {
		log.ErrorWithFields("failed to save asset", map[string]interface{}{
			"identifier": identifier,
			"error":      err.Error(),
		})
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	saved = true
	result.Status = StatusDownloaded
	result.Path = path
	result.Size = len(resp.Body)

	log.InfoWithFields("downloaded asset", map[string]interface{}{
		"url":      assetURL,
		"path":     path,
		"size":     result.Size,
		"duration": time.Since(start),
	})
	return result
}
