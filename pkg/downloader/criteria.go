package downloader

import (
	"fmt"
	"regexp"

	"redditdl/pkg/config"
	"redditdl/pkg/models"
)

// SkipReason explains why a listing or asset was not downloaded
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipLowScore          SkipReason = "score_below_minimum"
	SkipNSFW              SkipReason = "nsfw"
	SkipNotNSFW           SkipReason = "not_nsfw"
	SkipTitleMismatch     SkipReason = "title_mismatch"
	SkipAlreadyDownloaded SkipReason = "already_downloaded"
	SkipUnsupportedType   SkipReason = "unsupported_type"
)

// Criteria decides which listings are worth resolving. The zero value accepts
// everything with a score of at least zero.
type Criteria struct {
	MinScore     int
	SFWOnly      bool
	NSFWOnly     bool
	TitlePattern *regexp.Regexp
}

// NewCriteria builds Criteria from the filter config, compiling the title pattern once
func NewCriteria(cfg config.FilterConfig) (Criteria, error) {
	c := Criteria{
		MinScore: cfg.MinScore,
		SFWOnly:  cfg.SFWOnly,
		NSFWOnly: cfg.NSFWOnly,
	}
	if cfg.TitlePattern != "" {
		re, err := regexp.Compile(cfg.TitlePattern)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid title pattern %q: %w", cfg.TitlePattern, err)
		}
		c.TitlePattern = re
	}
	return c, nil
}

// Evaluate returns the first rule link fails, checked in the order score,
// sfw-only, nsfw-only, title. Setting both SFWOnly and NSFWOnly filters
// nothing on the adult flag.
func (c Criteria) Evaluate(link models.Link) (SkipReason, bool) {
	if link.Score < c.MinScore {
		return SkipLowScore, true
	}

	if c.SFWOnly != c.NSFWOnly {
		if c.SFWOnly && link.NSFW {
			return SkipNSFW, true
		}
		if c.NSFWOnly && !link.NSFW {
			return SkipNotNSFW, true
		}
	}

	if c.TitlePattern != nil && !c.TitlePattern.MatchString(link.Title) {
		return SkipTitleMismatch, true
	}

	return SkipNone, false
}
