package ratelimit

import (
	"context"
	"sync"
	"time"

	"redditdl/pkg/logger"
)

// Limiter gates outbound requests. Acquire blocks until the caller may start a
// request and returns a release func that must be called once the request is done.
type Limiter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// IntervalLimiter enforces a minimum interval between request starts and
// exclusive access for the duration of each request
type IntervalLimiter struct {
	interval time.Duration
	slot     chan struct{} // capacity 1, held from Acquire until release

	// guarded by slot
	lastStart time.Time
}

// NewIntervalLimiter creates a limiter with the given interval clamped to floor
func NewIntervalLimiter(minInterval, floor time.Duration, log logger.Logger) *IntervalLimiter {
	if log == nil {
		log = logger.GetLogger()
	}

	interval := minInterval
	if interval < floor {
		log.WarnWithFields("requested request interval is below the API floor, clamping", map[string]interface{}{
			"requested": minInterval,
			"floor":     floor,
		})
		interval = floor
	}

	return &IntervalLimiter{
		interval: interval,
		slot:     make(chan struct{}, 1),
	}
}

// Interval returns the effective interval after clamping
func (l *IntervalLimiter) Interval() time.Duration {
	return l.interval
}

// Acquire takes the request slot and waits out the remainder of the interval
// since the previous start. On success the slot stays held until release is called.
func (l *IntervalLimiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !l.lastStart.IsZero() {
		if wait := l.interval - time.Since(l.lastStart); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-l.slot
				return nil, ctx.Err()
			}
		}
	}

	l.lastStart = time.Now()

	var once sync.Once
	return func() { once.Do(func() { <-l.slot }) }, nil
}

// Do runs fn while holding the request slot
func (l *IntervalLimiter) Do(ctx context.Context, fn func() error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
