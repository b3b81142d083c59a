package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/esl-callbacks/internal/callback"
)

// Collector counts callback deliveries and the failures the core only logs.
type Collector struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	diversionErrors  prometheus.Counter
	unresolved       *prometheus.CounterVec
	events           *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esl_callbacks_deliveries_total",
				Help: "Callback delivery attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esl_callbacks_delivery_duration_seconds",
				Help:    "Duration of callback HTTP exchanges",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		diversionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esl_callbacks_diversion_parse_failures_total",
			Help: "Diversion headers that could not be parsed",
		}),
		unresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esl_callbacks_hangups_unresolved_total",
				Help: "Hangups for which no callback URL was configured",
			},
			[]string{"direction"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esl_callbacks_events_total",
				Help: "Events received from the event socket by name and routing result",
			},
			[]string{"event", "result"},
		),
	}
	reg.MustRegister(c.deliveries, c.deliveryDuration, c.diversionErrors, c.unresolved, c.events)
	return c
}

// ObserveDelivery implements callback.Observer.
func (c *Collector) ObserveDelivery(o callback.Outcome) {
	outcome := "delivered"
	if o.Err != nil {
		outcome = "failed"
		var respErr *callback.ResponseError
		if errors.As(o.Err, &respErr) {
			outcome = "rejected"
		}
	}
	c.deliveries.WithLabelValues(string(o.Kind), outcome).Inc()
	c.deliveryDuration.WithLabelValues(string(o.Kind)).Observe(o.Duration.Seconds())
}

// DiversionParseFailed implements hangup.Observer.
func (c *Collector) DiversionParseFailed() {
	c.diversionErrors.Inc()
}

// HangupUnresolved implements hangup.Observer.
func (c *Collector) HangupUnresolved(direction string) {
	if direction == "" {
		direction = "unknown"
	}
	c.unresolved.WithLabelValues(direction).Inc()
}

// EventDispatched implements router.Observer.
func (c *Collector) EventDispatched(name string) {
	c.events.WithLabelValues(name, "dispatched").Inc()
}

// EventDropped implements router.Observer.
func (c *Collector) EventDropped(name string) {
	c.events.WithLabelValues(name, "dropped").Inc()
}

// NewHandler serves /metrics from gatherer and a /healthz liveness check.
func NewHandler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve runs the metrics endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(gatherer),
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
