package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Banner printed at startup
const Banner = `
  ┌──────────────────────────────────────────┐
  │  redditdl :: subreddit image downloader  │
  └──────────────────────────────────────────┘
`

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	quiet  bool
	colors = true
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		enabled := colors
		mu.Unlock()
		if !enabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetOutput redirects terminal output; nil restores stdout
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetColor enables or disables ANSI colors
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colors = enabled
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

func printf(force bool, format string, args ...interface{}) {
	mu.Lock()
	w, q := out, quiet
	mu.Unlock()
	if q && !force {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintBanner prints the startup banner
func PrintBanner() {
	printf(false, "%s", Cyan(Banner))
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(true, "%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf(false, "%s\n", Yellow(msg))
	}
}

// Summary is the end-of-run report
type Summary struct {
	RunID      string
	Lists      int
	Processed  int
	Downloaded int
	Skipped    int
	Errors     int
	Duration   time.Duration
}

// PrintSummary prints the run totals
func PrintSummary(s Summary) {
	printf(false, "\n%s\n", Magenta("run complete"))
	if s.RunID != "" {
		printf(false, "  %-12s %s\n", Dim("run"), s.RunID)
	}
	printf(false, "  %-12s %d\n", Cyan("lists"), s.Lists)
	printf(false, "  %-12s %d\n", Cyan("processed"), s.Processed)
	printf(false, "  %-12s %s\n", Cyan("downloaded"), Green(fmt.Sprint(s.Downloaded)))
	printf(false, "  %-12s %s\n", Cyan("skipped"), Yellow(fmt.Sprint(s.Skipped)))

	errorsText := fmt.Sprint(s.Errors)
	if s.Errors > 0 {
		errorsText = Red(errorsText)
	}
	printf(false, "  %-12s %s\n", Cyan("errors"), errorsText)
	printf(false, "  %-12s %s\n", Cyan("elapsed"), s.Duration.Round(time.Millisecond))
}
