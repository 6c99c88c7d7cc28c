package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"redditdl/internal/scheduler"
	"redditdl/pkg/config"
	"redditdl/pkg/downloader"
	"redditdl/pkg/logger"
	"redditdl/pkg/metrics"
	"redditdl/pkg/models"
	"redditdl/pkg/ratelimit"
	"redditdl/pkg/reddit"
	"redditdl/pkg/resolver"
	"redditdl/pkg/retry"
	"redditdl/pkg/storage"
	"redditdl/pkg/ui"
)

// app is the fully wired downloader for one invocation
type app struct {
	runID     string
	cfg       *config.Config
	log       logger.Logger
	policy    scheduler.ShufflePolicy
	layout    scheduler.Layout
	scheduler *scheduler.Scheduler
	rng       *rand.Rand
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("redditdl starting")

	ui.PrintBanner()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, log, reg)
	if err != nil {
		return err
	}

	if cfg.Metrics.ListenAddr != "" {
		serveErrs, err := metrics.Serve(ctx, cfg.Metrics.ListenAddr, reg, log)
		if err != nil {
			return err
		}
		go func() {
			for err := range serveErrs {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		ui.PrintInfo("Metrics", "http://"+cfg.Metrics.ListenAddr+"/metrics")
	}

	summary := a.run(ctx, args)
	ui.PrintSummary(summary)

	if errors.Is(ctx.Err(), context.Canceled) {
		ui.PrintWarning("interrupted, totals cover completed work only")
	}
	return nil
}

// newApp validates the startup options and wires every component. Any
// error here aborts the run before a request is made.
func newApp(cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*app, error) {
	policy, err := scheduler.ParseShufflePolicy(cfg.Schedule.Shuffle)
	if err != nil {
		return nil, err
	}

	criteria, err := downloader.NewCriteria(cfg.Filter)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		return nil, fmt.Errorf("invalid destination %s: %w", cfg.Output.BaseDirectory, err)
	}

	limiter := ratelimit.NewIntervalLimiter(cfg.RateLimit.MinInterval, cfg.RateLimit.Floor, log)
	client := reddit.NewClient(reddit.ClientConfig{
		UserAgent:    cfg.Reddit.UserAgent,
		Timeout:      cfg.Reddit.RequestTimeout,
		MaxBodyBytes: cfg.Reddit.MaxBodyBytes,
		Headers:      cfg.Reddit.Headers,
	}, limiter, log)

	fetcher := reddit.NewFetcher(client, cfg.Reddit.BaseURL, cfg.Reddit.PageSize, log)
	pager := retry.WrapPageFetcher(fetcher, retry.FromConfig(cfg.Retry, log))

	engine := downloader.NewEngine(client, resolver.New(client, log), log)
	registry := storage.NewRegistry(cfg.Output.MaxFilenameLength)
	runID := uuid.New().String()

	sched := scheduler.New(pager, engine, registry, criteria, scheduler.Options{
		Workers:        cfg.Download.Workers,
		WorkerStagger:  cfg.Download.WorkerStagger,
		QueueWait:      cfg.Download.QueueWait,
		PageSize:       cfg.Reddit.PageSize,
		ListingLimit:   cfg.Download.ListingLimit,
		MaxDownloads:   cfg.Download.MaxDownloads,
		StopOnExisting: cfg.Download.StopOnExisting,
		StartCursor:    models.CursorFromFullname(cfg.Download.StartCursor),
		RunID:          runID,
	}, metrics.NewMetrics(reg), log)

	return &app{
		runID:     runID,
		cfg:       cfg,
		log:       log,
		policy:    policy,
		layout:    scheduler.Layout{BaseDirectory: cfg.Output.BaseDirectory, PerSubjectFolders: cfg.Output.PerSubjectFolders},
		scheduler: sched,
	}, nil
}

// run loads the lists found under paths and drains them in plan order
func (a *app) run(ctx context.Context, paths []string) ui.Summary {
	start := time.Now()

	lists := scheduler.LoadLists(paths, a.cfg.Output.ListExtension, a.cfg.Output.Recursive, a.log)
	if len(lists) == 0 {
		a.log.Warn("no list files found")
	}

	batches := scheduler.Plan(lists, a.policy, a.layout, a.rng)
	a.log.InfoWithFields("download plan ready", map[string]interface{}{
		"lists":   len(lists),
		"batches": len(batches),
		"shuffle": a.policy.String(),
	})

	totals := a.scheduler.Run(ctx, batches)

	return ui.Summary{
		RunID:      a.runID,
		Lists:      len(lists),
		Processed:  totals.Processed,
		Downloaded: totals.Downloaded,
		Skipped:    totals.Skipped,
		Errors:     totals.Errors,
		Duration:   time.Since(start),
	}
}
