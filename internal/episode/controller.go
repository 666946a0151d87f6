// Package episode drives partial embeddings to completion with a policy,
// restarting when an attempt gets stuck, and evaluates many such episodes
// in parallel.
package episode

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/wsn-embedder/core"
	"github.com/signalsfoundry/wsn-embedder/internal/logging"
	"github.com/signalsfoundry/wsn-embedder/internal/observability"
)

// Defaults applied by NewController.
const (
	DefaultMaxSteps    = 10000
	DefaultMaxRestarts = 100
)

var (
	ErrNoPolicy    = eris.New("episode needs a policy")
	ErrNoEmbedding = eris.New("episode needs an embedding")
)

// Policy picks the next action out of the current possibilities. It reports
// false if it declines to act.
type Policy interface {
	Choose(ps []core.Possibility) (core.Possibility, bool)
}

// Step describes one submitted action.
type Step struct {
	Index         int
	Action        core.Possibility
	Accepted      bool
	UsedTimeslots int
	FrontierSize  int
	Restarts      int
}

// Result summarises a finished episode.
type Result struct {
	Outcome       string
	Complete      bool
	UsedTimeslots int
	Steps         int
	Restarts      int
	Duration      time.Duration

	// Embedding is the final attempt, complete or not.
	Embedding *core.PartialEmbedding
}

// Controller plays episodes and notifies registered listeners after every
// action.
type Controller struct {
	mu sync.RWMutex

	MaxSteps    int
	MaxRestarts int
	// RestartUnsolvable restarts as soon as an attempt is proven
	// unsolvable instead of waiting for an empty frontier.
	RestartUnsolvable bool

	metrics   *observability.EmbeddingCollector
	log       logging.Logger
	listeners []func(Step)
}

// Option customises a Controller.
type Option func(*Controller)

// WithMaxSteps caps the number of actions across all attempts.
func WithMaxSteps(n int) Option { return func(c *Controller) { c.MaxSteps = n } }

// WithMaxRestarts caps the number of restarts after getting stuck.
func WithMaxRestarts(n int) Option { return func(c *Controller) { c.MaxRestarts = n } }

// WithRestartUnsolvable enables early restarts on unsolvable attempts.
func WithRestartUnsolvable() Option { return func(c *Controller) { c.RestartUnsolvable = true } }

// WithMetrics records action and episode metrics on collector.
func WithMetrics(collector *observability.EmbeddingCollector) Option {
	return func(c *Controller) { c.metrics = collector }
}

// WithLogger sets the controller logger. Without one, the logger carried
// by the run context is used.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController constructs a controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		MaxSteps:    DefaultMaxSteps,
		MaxRestarts: DefaultMaxRestarts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddListener registers a callback invoked after every action. Listeners
// run on the episode goroutine, so batches call them concurrently.
func (c *Controller) AddListener(fn func(Step)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) logger(ctx context.Context) logging.Logger {
	if c.log != nil {
		return c.log
	}
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return logging.Noop()
}

func (c *Controller) notify(s Step) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, fn := range c.listeners {
		fn(s)
	}
}

// Run plays e with policy until it is complete, stuck after MaxRestarts
// restarts, or out of steps. A canceled context ends the episode with the
// context error.
func (c *Controller) Run(ctx context.Context, e *core.PartialEmbedding, policy Policy) (Result, error) {
	if e == nil {
		return Result{}, ErrNoEmbedding
	}
	if policy == nil {
		return Result{}, ErrNoPolicy
	}
	ctx, runID := logging.EnsureRunID(ctx)
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "episode.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	start := time.Now()
	res, err := c.play(ctx, e, policy)
	res.Duration = time.Since(start)
	c.metrics.ObserveEpisode(res.Outcome, res.UsedTimeslots, res.Duration)

	span.SetAttributes(
		attribute.String("outcome", res.Outcome),
		attribute.Int("steps", res.Steps),
		attribute.Int("restarts", res.Restarts),
		attribute.Int("used_timeslots", res.UsedTimeslots),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	c.logger(ctx).Info(ctx, "episode finished",
		logging.String("outcome", res.Outcome),
		logging.Int("steps", res.Steps),
		logging.Int("restarts", res.Restarts),
		logging.Int("used_timeslots", res.UsedTimeslots),
		logging.Duration("elapsed", res.Duration),
	)
	return res, err
}

func (c *Controller) play(ctx context.Context, e *core.PartialEmbedding, policy Policy) (Result, error) {
	log := c.logger(ctx)
	res := Result{Embedding: e}
	for {
		if err := ctx.Err(); err != nil {
			res.Outcome = observability.OutcomeCanceled
			return res, eris.Wrap(err, "episode interrupted")
		}
		if e.IsComplete() {
			res.Outcome = observability.OutcomeComplete
			res.Complete = true
			res.UsedTimeslots = e.UsedTimeslots()
			return res, nil
		}
		if res.Steps >= c.MaxSteps {
			res.Outcome = observability.OutcomeStepLimit
			res.UsedTimeslots = e.UsedTimeslots()
			return res, nil
		}

		ps := e.Possibilities()
		c.metrics.SetFrontierSize(len(ps))
		stuck := len(ps) == 0 || (c.RestartUnsolvable && !e.IsSolvable())
		if stuck {
			if res.Restarts >= c.MaxRestarts {
				res.Outcome = observability.OutcomeStuck
				res.UsedTimeslots = e.UsedTimeslots()
				return res, nil
			}
			log.Debug(ctx, "attempt stuck, restarting",
				logging.Int("restarts", res.Restarts),
				logging.Int("used_timeslots", e.UsedTimeslots()))
			e = e.Reset()
			res.Embedding = e
			res.Restarts++
			c.metrics.IncRestarts()
			trace.SpanFromContext(ctx).AddEvent("restart")
			continue
		}

		action, ok := policy.Choose(ps)
		if !ok {
			res.Outcome = observability.OutcomeStuck
			res.UsedTimeslots = e.UsedTimeslots()
			return res, nil
		}
		accepted := e.TakeAction(action.Source, action.Target, action.Timeslot)
		c.metrics.ObserveAction(accepted)
		res.Steps++

		step := Step{
			Index:         res.Steps,
			Action:        action,
			Accepted:      accepted,
			UsedTimeslots: e.UsedTimeslots(),
			FrontierSize:  e.FrontierSize(),
			Restarts:      res.Restarts,
		}
		log.Debug(ctx, "step",
			logging.Int("index", step.Index),
			logging.String("action", action.String()),
			logging.Bool("accepted", accepted),
			logging.Int("used_timeslots", step.UsedTimeslots))
		c.notify(step)
	}
}
