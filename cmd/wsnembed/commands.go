package main

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/wsn-embedder/agent"
	"github.com/signalsfoundry/wsn-embedder/core"
	"github.com/signalsfoundry/wsn-embedder/internal/episode"
	"github.com/signalsfoundry/wsn-embedder/internal/logging"
	"github.com/signalsfoundry/wsn-embedder/scenario"
)

type checkReport struct {
	Scenario      string   `json:"scenario"`
	State         string   `json:"state"`
	Solvable      bool     `json:"solvable"`
	UsedTimeslots int      `json:"used_timeslots"`
	Possibilities []string `json:"possibilities"`
}

type edgeReport struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Timeslot int    `json:"timeslot"`
}

type runReport struct {
	Scenario      string       `json:"scenario"`
	RunID         string       `json:"run_id"`
	Outcome       string       `json:"outcome"`
	Complete      bool         `json:"complete"`
	UsedTimeslots int          `json:"used_timeslots"`
	Steps         int          `json:"steps"`
	Restarts      int          `json:"restarts"`
	ElapsedMs     float64      `json:"elapsed_ms"`
	Edges         []edgeReport `json:"edges"`
}

type evalReport struct {
	Scenario      string  `json:"scenario"`
	Episodes      int     `json:"episodes"`
	Completed     int     `json:"completed"`
	SuccessRate   float64 `json:"success_rate"`
	MeanTimeslots float64 `json:"mean_timeslots"`
	MinTimeslots  int     `json:"min_timeslots"`
	MaxTimeslots  int     `json:"max_timeslots"`
	MeanSteps     float64 `json:"mean_steps"`
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario.json>",
		Short: "Print the initial possibilities and whether the scenario is solvable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, e, err := load(args[0])
			if err != nil {
				return err
			}
			report := checkReport{
				Scenario:      s.Name,
				State:         e.State().String(),
				Solvable:      e.IsSolvable(),
				UsedTimeslots: e.UsedTimeslots(),
				Possibilities: []string{},
			}
			for _, p := range e.Possibilities() {
				report.Possibilities = append(report.Possibilities, p.String())
			}
			a.log.Info(cmd.Context(), "checked scenario",
				logging.String("scenario", s.Name),
				logging.Int("possibilities", len(report.Possibilities)),
				logging.Bool("solvable", report.Solvable))
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.json>",
		Short: "Play one greedy episode and print the resulting embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, e, err := load(args[0])
			if err != nil {
				return err
			}
			ctx, runID := logging.EnsureRunID(cmd.Context())

			g := agent.NewGreedy(a.v.GetUint64(keySeed))
			g.Epsilon = a.v.GetFloat64(keyEpsilon)
			res, err := a.controller().Run(ctx, e, g)
			if err != nil {
				return err
			}

			report := runReport{
				Scenario:      s.Name,
				RunID:         runID,
				Outcome:       res.Outcome,
				Complete:      res.Complete,
				UsedTimeslots: res.UsedTimeslots,
				Steps:         res.Steps,
				Restarts:      res.Restarts,
				ElapsedMs:     float64(res.Duration.Microseconds()) / 1000,
				Edges:         edges(res.Embedding),
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	episodeFlags(cmd.Flags())
	return cmd
}

func newEvalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <scenario.json>",
		Short: "Evaluate many seeded greedy episodes in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, base, err := load(args[0])
			if err != nil {
				return err
			}
			seed := a.v.GetUint64(keySeed)
			epsilon := a.v.GetFloat64(keyEpsilon)

			sum, err := a.controller().RunBatch(cmd.Context(),
				a.v.GetInt(keyEpisodes), a.v.GetInt(keyParallelism),
				func(i int) (*core.PartialEmbedding, episode.Policy, error) {
					g := agent.NewGreedy(seed + uint64(i))
					g.Epsilon = epsilon
					return base.Reset(), g, nil
				})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), evalReport{
				Scenario:      s.Name,
				Episodes:      sum.Episodes,
				Completed:     sum.Completed,
				SuccessRate:   sum.SuccessRate,
				MeanTimeslots: sum.MeanTimeslots,
				MinTimeslots:  sum.MinTimeslots,
				MaxTimeslots:  sum.MaxTimeslots,
				MeanSteps:     sum.MeanSteps,
			})
		},
	}
	episodeFlags(cmd.Flags())
	cmd.Flags().Int(keyEpisodes, 100, "number of episodes")
	cmd.Flags().Int(keyParallelism, 0, "episodes run at once, 0 means GOMAXPROCS")
	return cmd
}

func load(path string) (*scenario.Scenario, *core.PartialEmbedding, error) {
	s, err := scenario.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.Embedding()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "scenario %q", path)
	}
	return s, e, nil
}

func edges(e *core.PartialEmbedding) []edgeReport {
	out := []edgeReport{}
	if e == nil {
		return out
	}
	for _, ed := range e.ChosenEdges() {
		out = append(out, edgeReport{From: ed.From.String(), To: ed.To.String(), Timeslot: ed.Timeslot})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}
