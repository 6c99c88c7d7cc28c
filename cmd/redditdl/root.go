package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"redditdl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool

	// Run flags
	destDir       string
	recursive     bool
	listExt       string
	shuffle       string
	workers       int
	minScore      int
	sfwOnly       bool
	nsfwOnly      bool
	titleRegex    string
	listingLimit  int
	maxDownloads  int
	updateOnly    bool
	startAfter    string
	fetchInterval time.Duration
)

// rootCmd downloads every subreddit named in the given list files
var rootCmd = &cobra.Command{
	Use:   "redditdl [flags] FILE|DIR...",
	Short: "Download images posted to subreddit listings",
	Long: `redditdl walks the listings of every subreddit named in one or more list
files and saves the linked images to disk.

A list file holds one subreddit per line. Blank lines and lines starting
with # are ignored. Directories are searched for files ending in the list
extension (default ".list"), recursively with --recursive.

Files are written to <dest>/<list>/<subreddit>/ and named after the post
title. Titles already present on disk are skipped.`,
	Example: `  # Download everything in two lists
  redditdl wallpapers.list animals.list

  # Only well-received SFW posts, 8 workers, shuffled subreddits
  redditdl --score 100 --sfw --workers 8 --shuffle subjects lists/

  # Refresh a collection, stopping each subreddit at the first known file
  redditdl --update --dest ~/pictures lists/`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if noColor {
			ui.SetColor(false)
		}
	},
	RunE: runDownload,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("redditdl failed", err.Error())
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.redditdl.yaml or $HOME/.config/redditdl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	// Run flags
	rootCmd.Flags().StringVarP(&destDir, "dest", "d", "", "base output directory (default: current directory)")
	rootCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "search directories for list files recursively")
	rootCmd.Flags().StringVar(&listExt, "ext", ".list", "extension identifying list files")
	rootCmd.Flags().StringVar(&shuffle, "shuffle", "", "shuffle policy: subjects, lists, all, or a comma separated mix")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent subreddit jobs per list")
	rootCmd.Flags().IntVar(&minScore, "score", 0, "skip listings scoring below this value")
	rootCmd.Flags().BoolVar(&sfwOnly, "sfw", false, "only download listings not marked NSFW")
	rootCmd.Flags().BoolVar(&nsfwOnly, "nsfw", false, "only download listings marked NSFW")
	rootCmd.Flags().StringVar(&titleRegex, "regex", "", "only download listings whose title matches this pattern")
	rootCmd.Flags().IntVar(&listingLimit, "limit", 0, "listings to examine per subreddit (0 for no limit)")
	rootCmd.Flags().IntVarP(&maxDownloads, "num", "n", 0, "downloads per subreddit before moving on (0 for no limit)")
	rootCmd.Flags().BoolVarP(&updateOnly, "update", "u", false, "stop a subreddit at the first file already on disk")
	rootCmd.Flags().StringVar(&startAfter, "last", "", "start every subreddit after this listing id")
	rootCmd.Flags().DurationVar(&fetchInterval, "interval", 2*time.Second, "minimum time between requests")

	// Version template
	rootCmd.SetVersionTemplate(`redditdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects the run flags the user actually set so that
// config file and environment values survive unset flags
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}

	set("dest", destDir)
	set("recursive", recursive)
	set("ext", listExt)
	set("shuffle", shuffle)
	set("workers", workers)
	set("score", minScore)
	set("sfw", sfwOnly)
	set("nsfw", nsfwOnly)
	set("regex", titleRegex)
	set("limit", listingLimit)
	set("num", maxDownloads)
	set("update", updateOnly)
	set("last", startAfter)
	set("interval", fetchInterval)
	set("log-level", logLevel)
	set("no-color", noColor)

	return flags
}
