package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Episode outcome labels.
const (
	OutcomeComplete  = "complete"
	OutcomeStuck     = "stuck"
	OutcomeStepLimit = "step_limit"
	OutcomeCanceled  = "canceled"
)

// EmbeddingCollector bundles Prometheus metrics for embedding episodes and
// exposes them through a /metrics handler.
type EmbeddingCollector struct {
	gatherer prometheus.Gatherer

	Actions         *prometheus.CounterVec
	Episodes        *prometheus.CounterVec
	Restarts        prometheus.Counter
	UsedTimeslots   prometheus.Histogram
	EpisodeDuration prometheus.Histogram
	FrontierSize    prometheus.Gauge
}

// NewEmbeddingCollector registers embedding metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEmbeddingCollector(reg prometheus.Registerer) (*EmbeddingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	actions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "embedding_actions_total",
		Help: "Actions submitted to the embedding engine, labeled by result (accepted or rejected).",
	}, []string{"result"}), "embedding_actions_total")
	if err != nil {
		return nil, err
	}

	episodes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "embedding_episodes_total",
		Help: "Finished embedding episodes, labeled by outcome.",
	}, []string{"outcome"}), "embedding_episodes_total")
	if err != nil {
		return nil, err
	}

	restarts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "embedding_restarts_total",
		Help: "Episodes restarted from scratch after getting stuck.",
	}), "embedding_restarts_total")
	if err != nil {
		return nil, err
	}

	used, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "embedding_used_timeslots",
		Help:    "Timeslots used by completed embeddings.",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	}), "embedding_used_timeslots")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "embedding_episode_duration_seconds",
		Help:    "Wall-clock duration of embedding episodes.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "embedding_episode_duration_seconds")
	if err != nil {
		return nil, err
	}

	frontier, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "embedding_frontier_size",
		Help: "Possibilities offered by the most recently stepped embedding.",
	}), "embedding_frontier_size")
	if err != nil {
		return nil, err
	}

	return &EmbeddingCollector{
		gatherer:        gatherer,
		Actions:         actions,
		Episodes:        episodes,
		Restarts:        restarts,
		UsedTimeslots:   used,
		EpisodeDuration: duration,
		FrontierSize:    frontier,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EmbeddingCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EmbeddingCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveAction counts one submitted action.
func (c *EmbeddingCollector) ObserveAction(accepted bool) {
	if c == nil || c.Actions == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.Actions.WithLabelValues(result).Inc()
}

// SetFrontierSize updates the frontier gauge.
func (c *EmbeddingCollector) SetFrontierSize(n int) {
	if c == nil || c.FrontierSize == nil {
		return
	}
	c.FrontierSize.Set(float64(n))
}

// IncRestarts increments the restart counter.
func (c *EmbeddingCollector) IncRestarts() {
	if c == nil || c.Restarts == nil {
		return
	}
	c.Restarts.Inc()
}

// ObserveEpisode records a finished episode. Timeslot usage is only
// meaningful for complete embeddings and is skipped otherwise.
func (c *EmbeddingCollector) ObserveEpisode(outcome string, usedTimeslots int, d time.Duration) {
	if c == nil {
		return
	}
	if c.Episodes != nil {
		c.Episodes.WithLabelValues(outcome).Inc()
	}
	if c.EpisodeDuration != nil {
		c.EpisodeDuration.Observe(d.Seconds())
	}
	if outcome == OutcomeComplete && c.UsedTimeslots != nil {
		c.UsedTimeslots.Observe(float64(usedTimeslots))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return gauge, nil
}
