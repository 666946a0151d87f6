// Package agent contains policies that pick the next transmission of a
// partial embedding.
package agent

import (
	"math/rand/v2"

	"github.com/signalsfoundry/wsn-embedder/core"
)

// DefaultEpsilon is the exploration rate of a new Greedy agent.
const DefaultEpsilon = 0.01

// Greedy is a semi-greedy baseline: it prefers the earliest timeslot on
// offer and occasionally picks any possibility to break out of restart
// loops. It is not safe for concurrent use; give each episode its own.
type Greedy struct {
	Epsilon float64
	rng     *rand.Rand
}

// NewGreedy returns a Greedy agent whose choices are reproducible for a
// given seed.
func NewGreedy(seed uint64) *Greedy {
	return &Greedy{
		Epsilon: DefaultEpsilon,
		rng:     rand.New(rand.NewPCG(seed, seed^0x5deece66d)),
	}
}

// Choose picks one of ps. It reports false when ps is empty.
func (g *Greedy) Choose(ps []core.Possibility) (core.Possibility, bool) {
	if len(ps) == 0 {
		return core.Possibility{}, false
	}
	if g.rng.Float64() < g.Epsilon {
		return ps[g.rng.IntN(len(ps))], true
	}

	best := ps[0].Timeslot
	var earliest []int
	for i, p := range ps {
		switch {
		case p.Timeslot < best:
			best = p.Timeslot
			earliest = append(earliest[:0], i)
		case p.Timeslot == best:
			earliest = append(earliest, i)
		}
	}
	return ps[earliest[g.rng.IntN(len(earliest))]], true
}
