package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"redditdl/pkg/downloader"
	"redditdl/pkg/logger"
	"redditdl/pkg/metrics"
	"redditdl/pkg/models"
	"redditdl/pkg/reddit"
	"redditdl/pkg/storage"
)

// State is the lifecycle position of a batch
type State string

const (
	StateLoaded   State = "loaded"
	StateQueued   State = "queued"
	StateDraining State = "draining"
	StateDone     State = "done"
)

const (
	defaultWorkers   = 4
	defaultQueueWait = time.Second
)

// Options configures worker pools and per-job limits
type Options struct {
	Workers       int
	WorkerStagger time.Duration
	QueueWait     time.Duration

	// PageSize is the number of listings requested per page
	PageSize int
	// ListingLimit caps listings examined per subreddit, 0 for no cap
	ListingLimit int
	// MaxDownloads stops a job after this many downloads, 0 for no cap
	MaxDownloads int
	// StopOnExisting stops a job at the first asset already on disk
	StopOnExisting bool
	// StartCursor seeds every job's pagination
	StartCursor models.Cursor
	// RunID tags every log line of a run; a random one is used when empty
	RunID string
}

// ListingProcessor handles one listing; satisfied by *downloader.Engine
type ListingProcessor interface {
	ProcessListing(ctx context.Context, link models.Link, criteria downloader.Criteria, store downloader.AssetStore) downloader.Outcome
}

// Scheduler drains batches of subreddit jobs through a bounded worker pool
type Scheduler struct {
	pager    reddit.PageFetcher
	engine   ListingProcessor
	registry *storage.Registry
	criteria downloader.Criteria
	opts     Options
	stats    *Stats
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// New creates a Scheduler. m may be nil.
func New(
	pager reddit.PageFetcher,
	engine ListingProcessor,
	registry *storage.Registry,
	criteria downloader.Criteria,
	opts Options,
	m *metrics.Metrics,
	log logger.Logger,
) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueWait <= 0 {
		opts.QueueWait = defaultQueueWait
	}

	return &Scheduler{
		pager:    pager,
		engine:   engine,
		registry: registry,
		criteria: criteria,
		opts:     opts,
		stats:    NewStats(m),
		metrics:  m,
		logger:   log,
	}
}

// Stats returns the totals merged so far
func (s *Scheduler) Stats() Totals {
	return s.stats.Snapshot()
}

// Run processes batches one after another and returns the run totals
func (s *Scheduler) Run(ctx context.Context, batches []Batch) Totals {
	runID := s.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := s.logger.WithField("run_id", runID)
	start := time.Now()

	logger.LogComponentStart(log, "scheduler", map[string]interface{}{
		"batches":          len(batches),
		"workers":          s.opts.Workers,
		"max_downloads":    s.opts.MaxDownloads,
		"stop_on_existing": s.opts.StopOnExisting,
	})

	for _, batch := range batches {
		if ctx.Err() != nil {
			log.Warn("run cancelled, skipping remaining lists")
			break
		}
		s.runBatch(ctx, log, batch)
	}

	totals := s.stats.Snapshot()
	log.InfoWithFields("run finished", map[string]interface{}{
		"processed":  totals.Processed,
		"downloaded": totals.Downloaded,
		"skipped":    totals.Skipped,
		"errors":     totals.Errors,
		"duration":   time.Since(start),
	})
	return totals
}

// RunList drains a single batch and returns the totals it contributed
func (s *Scheduler) RunList(ctx context.Context, batch Batch) Totals {
	return s.runBatch(ctx, s.logger, batch)
}

func (s *Scheduler) runBatch(ctx context.Context, log logger.Logger, batch Batch) Totals {
	log = log.WithField("list", batch.Name)
	before := s.stats.Snapshot()

	setState := func(state State, fields map[string]interface{}) {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["state"] = string(state)
		log.InfoWithFields(fmt.Sprintf("list %s", state), fields)
	}

	setState(StateLoaded, map[string]interface{}{"jobs": len(batch.Jobs)})

	queue := NewQueue(batch.Jobs)
	setState(StateQueued, map[string]interface{}{"queued": queue.Len()})

	workers := min(s.opts.Workers, len(batch.Jobs))
	setState(StateDraining, map[string]interface{}{"workers": workers})

	limit := rate.Inf
	if s.opts.WorkerStagger > 0 {
		limit = rate.Every(s.opts.WorkerStagger)
	}
	stagger := rate.NewLimiter(limit, 1)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		if err := stagger.Wait(ctx); err != nil {
			break
		}
		id := i
		g.Go(func() error {
			s.worker(ctx, log.WithField("worker_id", id), queue)
			return nil
		})
	}
	_ = g.Wait()

	after := s.stats.Snapshot()
	contributed := Totals{
		Processed:  after.Processed - before.Processed,
		Downloaded: after.Downloaded - before.Downloaded,
		Skipped:    after.Skipped - before.Skipped,
		Errors:     after.Errors - before.Errors,
	}
	setState(StateDone, map[string]interface{}{
		"processed":  contributed.Processed,
		"downloaded": contributed.Downloaded,
		"skipped":    contributed.Skipped,
		"errors":     contributed.Errors,
	})
	return contributed
}

// worker pulls jobs until the queue is drained or a job panics
func (s *Scheduler) worker(ctx context.Context, log logger.Logger, queue *Queue) {
	s.metrics.RecordWorkerStarted()
	defer s.metrics.RecordWorkerStopped()

	log.Debug("worker started")
	for {
		job, ok := queue.Pull(ctx, s.opts.QueueWait)
		if !ok {
			log.Debug("worker stopping - queue drained")
			return
		}
		if !s.runJobSafely(ctx, log, job) {
			return
		}
	}
}

// runJobSafely runs one job and merges its totals. A panic discards the
// job's totals and reports false so the worker exits.
func (s *Scheduler) runJobSafely(ctx context.Context, log logger.Logger, job Job) (ok bool) {
	log = log.WithFields(map[string]interface{}{
		"subreddit":   job.Subreddit,
		"destination": job.Destination,
	})
	start := time.Now()
	s.metrics.RecordJobStarted()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorWithFields("worker panicked, discarding job", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			s.metrics.RecordPanic()
			s.metrics.RecordJobFinished(job.List, "panic", time.Since(start).Seconds())
			ok = false
		}
	}()

	totals := s.runJob(ctx, log, job)
	s.stats.Merge(job.List, totals)

	status := "ok"
	if totals.Errors > 0 {
		status = "errors"
	}
	s.metrics.RecordJobFinished(job.List, status, time.Since(start).Seconds())
	return true
}

func (s *Scheduler) runJob(ctx context.Context, log logger.Logger, job Job) Totals {
	var totals Totals

	store, err := s.registry.Manager(job.Destination)
	if err != nil {
		log.ErrorWithFields("failed to prepare destination", map[string]interface{}{
			"error": err.Error(),
		})
		totals.Errors++
		return totals
	}

	log.Info("downloading subreddit")

	stream := reddit.NewStream(s.pager, job.Subreddit, s.opts.StartCursor, s.opts.ListingLimit, s.opts.PageSize)
	for stream.Next(ctx) {
		outcome := s.engine.ProcessListing(ctx, stream.Link(), s.criteria, store)
		totals.Add(outcome)

		if s.opts.StopOnExisting && outcome.Existing {
			log.Info("reached an already downloaded asset, stopping job")
			break
		}
		if s.opts.MaxDownloads > 0 && totals.Downloaded >= s.opts.MaxDownloads {
			log.InfoWithFields("download limit reached, stopping job", map[string]interface{}{
				"max_downloads": s.opts.MaxDownloads,
			})
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			// shutdown cut the fetch short
			log.Info("listing stream interrupted")
		} else {
			log.WarnWithFields("listing stream ended with error", map[string]interface{}{
				"error":  err.Error(),
				"cursor": string(stream.Cursor()),
			})
			totals.Errors++
		}
	}

	log.InfoWithFields("subreddit finished", map[string]interface{}{
		"processed":  totals.Processed,
		"downloaded": totals.Downloaded,
		"skipped":    totals.Skipped,
		"errors":     totals.Errors,
	})
	return totals
}
