package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redditdl/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Handler returns the /metrics handler for gatherer, or the default gatherer when nil
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is done. The listener
// is bound before Serve returns, so a bad address fails fast.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) (<-chan error, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
		close(done)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WarnWithFields("metrics server shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	log.InfoWithFields("serving metrics", map[string]interface{}{
		"addr": ln.Addr().String(),
	})
	return done, nil
}
