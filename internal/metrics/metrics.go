// Package metrics exposes simulation timings as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder holds the simulation collectors. It satisfies simulation.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	steps         prometheus.Counter
	particles     prometheus.Gauge
	fps           prometheus.Gauge
}

// New creates a Recorder with its own registry so several recorders can coexist in one process.
//
// Returns:
//   - *Recorder: the recorder with every collector registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oxy_gravity_stage_duration_seconds",
				Help:    "Time spent in one dispatch of a simulation stage",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
			},
			[]string{"stage"},
		),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oxy_gravity_steps_total",
			Help: "Number of completed simulation steps",
		}),
		particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oxy_gravity_particles",
			Help: "Number of simulated particles",
		}),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oxy_gravity_frames_per_second",
			Help: "Presented frames per second over the last profiler interval",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.steps, r.particles, r.fps)
	r.registry.MustRegister(collectors.NewGoCollector())
	return r
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) AddSteps(n int) {
	r.steps.Add(float64(n))
}

func (r *Recorder) SetParticles(n int) {
	r.particles.Set(float64(n))
}

// SetFPS records the frame rate reported by the profiler.
func (r *Recorder) SetFPS(fps float64) {
	r.fps.Set(fps)
}

// Registry returns the registry the collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the /metrics HTTP handler for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// NewServer builds the metrics HTTP server.
//
// Parameters:
//   - addr: the listen address, e.g. ":9090"
//   - r: the recorder to expose
//
// Returns:
//   - *http.Server: the server, not yet started
func NewServer(addr string, r *Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
//
// Parameters:
//   - ctx: the context whose cancellation stops the server
//   - srv: the server to run
//   - logger: the logger for lifecycle messages
//
// Returns:
//   - error: the listen error, or nil after a clean shutdown
func Serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
			return err
		}
		logger.Info("metrics server stopped")
		return nil
	}
}
