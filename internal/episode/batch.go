package episode

import (
	"context"
	"runtime"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/wsn-embedder/core"
	"github.com/signalsfoundry/wsn-embedder/internal/logging"
)

// Factory builds the i-th episode of a batch: a fresh engine and the policy
// that plays it. Policies must not be shared between episodes.
type Factory func(i int) (*core.PartialEmbedding, Policy, error)

// Summary aggregates the results of a batch.
type Summary struct {
	Episodes      int
	Completed     int
	SuccessRate   float64
	MeanTimeslots float64 // over completed episodes
	MinTimeslots  int
	MaxTimeslots  int
	MeanSteps     float64
	Results       []Result
}

// RunBatch plays n independent episodes with at most parallelism running
// at once. parallelism <= 0 means GOMAXPROCS. The first factory or episode
// error cancels the rest.
func (c *Controller) RunBatch(ctx context.Context, n, parallelism int, factory Factory) (Summary, error) {
	if factory == nil {
		return Summary{}, eris.New("batch needs an episode factory")
	}
	if n < 0 {
		return Summary{}, eris.Errorf("batch size must not be negative, got %d", n)
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	ctx, batchID := logging.EnsureRunID(ctx)

	results := make([]Result, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			e, policy, err := factory(i)
			if err != nil {
				return eris.Wrapf(err, "build episode %d", i)
			}
			// Each episode gets its own run ID.
			ectx := logging.ContextWithRunID(gctx, batchID+"/"+strconv.Itoa(i))
			res, err := c.Run(ectx, e, policy)
			if err != nil {
				return eris.Wrapf(err, "episode %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s := Summarise(results)
	c.logger(ctx).Info(ctx, "batch finished",
		logging.Int("episodes", s.Episodes),
		logging.Int("completed", s.Completed),
		logging.Float("success_rate", s.SuccessRate),
		logging.Float("mean_timeslots", s.MeanTimeslots),
	)
	return s, nil
}

// Summarise aggregates results.
func Summarise(results []Result) Summary {
	s := Summary{Episodes: len(results), Results: results}
	totalSlots, totalSteps := 0, 0
	for _, r := range results {
		totalSteps += r.Steps
		if !r.Complete {
			continue
		}
		if s.Completed == 0 || r.UsedTimeslots < s.MinTimeslots {
			s.MinTimeslots = r.UsedTimeslots
		}
		if r.UsedTimeslots > s.MaxTimeslots {
			s.MaxTimeslots = r.UsedTimeslots
		}
		s.Completed++
		totalSlots += r.UsedTimeslots
	}
	if s.Episodes > 0 {
		s.SuccessRate = float64(s.Completed) / float64(s.Episodes)
		s.MeanSteps = float64(totalSteps) / float64(s.Episodes)
	}
	if s.Completed > 0 {
		s.MeanTimeslots = float64(totalSlots) / float64(s.Completed)
	}
	return s
}

// Gap is the relative excess in percent of heuristic over baseline
// timeslots.
func Gap(baseline, heuristic float64) float64 {
	if baseline == 0 {
		return 0
	}
	return 100 * (heuristic - baseline) / baseline
}
