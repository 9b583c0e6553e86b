package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsProcessed counts finished job attempts by type and status
	// (ok, no_action, error).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vulpo_jobs_total",
		Help: "Processed background jobs by type and final status.",
	}, []string{"type", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vulpo_job_duration_seconds",
		Help:    "Wall time per job attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	GateBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vulpo_gate_blocks_total",
		Help: "Apply attempts deferred because the per-chat gate was set.",
	})

	TelegramRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vulpo_telegram_requests_total",
		Help: "Telegram API requests by method and outcome.",
	}, []string{"method", "outcome"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vulpo_hash_search_duration_seconds",
		Help:    "Latency of reverse hash search lookups.",
		Buckets: prometheus.DefBuckets,
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vulpo_download_bytes_total",
		Help: "Bytes fetched for hashing and similarity confirmation.",
	})

	ResolverNoAction = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vulpo_resolver_no_action_total",
		Help: "Discover runs that ended without an annotation, by reason.",
	}, []string{"reason"})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
