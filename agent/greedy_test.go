package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/wsn-embedder/core"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

func slots(ts ...int) []core.Possibility {
	out := make([]core.Possibility, len(ts))
	for i, t := range ts {
		out[i] = core.Possibility{Timeslot: t}
	}
	return out
}

func TestGreedyEmptyFrontier(t *testing.T) {
	_, ok := NewGreedy(1).Choose(nil)
	assert.False(t, ok)
}

func TestGreedyPrefersEarliestTimeslot(t *testing.T) {
	g := NewGreedy(42)
	g.Epsilon = 0
	ps := slots(2, 1, 3, 1, 2)
	for i := 0; i < 200; i++ {
		p, ok := g.Choose(ps)
		require.True(t, ok)
		assert.Equal(t, 1, p.Timeslot)
	}
}

func TestGreedyCoversAllEarliestOptions(t *testing.T) {
	g := NewGreedy(7)
	g.Epsilon = 0
	a, b, c := &overlay.Block{ID: 0}, &overlay.Block{ID: 1}, &overlay.Block{ID: 2}
	ps := []core.Possibility{
		{Target: core.ENode{Block: a}, Timeslot: 0},
		{Target: core.ENode{Block: b}, Timeslot: 0},
		{Target: core.ENode{Block: c}, Timeslot: 1},
	}
	seen := map[*overlay.Block]int{}
	for i := 0; i < 500; i++ {
		p, _ := g.Choose(ps)
		seen[p.Target.Block]++
	}
	assert.Positive(t, seen[a])
	assert.Positive(t, seen[b])
	assert.Zero(t, seen[c])
}

func TestGreedyExploresWithEpsilonOne(t *testing.T) {
	g := NewGreedy(3)
	g.Epsilon = 1
	ps := slots(0, 5)
	late := 0
	for i := 0; i < 400; i++ {
		if p, _ := g.Choose(ps); p.Timeslot == 5 {
			late++
		}
	}
	assert.Greater(t, late, 100)
}

func TestGreedyIsReproducible(t *testing.T) {
	ps := slots(0, 0, 0, 1, 1, 2)
	a, b := NewGreedy(99), NewGreedy(99)
	a.Epsilon, b.Epsilon = 0.5, 0.5
	for i := 0; i < 100; i++ {
		pa, _ := a.Choose(ps)
		pb, _ := b.Choose(ps)
		assert.Equal(t, pa, pb)
	}
}
