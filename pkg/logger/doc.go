// Package logger provides the structured logging interface used across redditdl.
//
// It wraps zerolog behind a small Logger interface so components can be handed
// a logger (or a TestLogger in tests) instead of reaching for a global:
//
//	log := logger.GetLogger().WithField("component", "scheduler")
//	log.InfoWithFields("list drained", map[string]interface{}{
//	    "list":       "wallpapers",
//	    "downloaded": 12,
//	})
//
// Initialize configures the process-wide default from config.LoggingConfig:
// an empty File writes colored console output to stdout, a File path writes
// JSON lines to the file and a plain console copy to stdout.
package logger
