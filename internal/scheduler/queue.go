package scheduler

import (
	"context"
	"time"
)

// Queue is a pre-filled, closed job queue shared by the workers of one batch
type Queue struct {
	jobs chan Job
}

// NewQueue buffers every job and closes the queue, so pulls never block
// on an empty queue once it is drained
func NewQueue(jobs []Job) *Queue {
	ch := make(chan Job, len(jobs))
	for _, job := range jobs {
		ch <- job
	}
	close(ch)
	return &Queue{jobs: ch}
}

// Pull returns the next job. It gives up when the queue is drained, ctx is
// done, or no job arrives within wait.
func (q *Queue) Pull(ctx context.Context, wait time.Duration) (Job, bool) {
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Job{}, false
	default:
	}

	select {
	case job, ok := <-q.jobs:
		return job, ok
	case <-ctx.Done():
		return Job{}, false
	case <-timer.C:
		return Job{}, false
	}
}

// Len returns the number of jobs still queued
func (q *Queue) Len() int {
	return len(q.jobs)
}
