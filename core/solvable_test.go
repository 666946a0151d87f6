package core

import (
	"testing"

	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

// TestBigDistanceNotSolvable: the sink cannot be reached from the source.
func TestBigDistanceNotSolvable(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 1, infra.WithName("nso"))
	mustInfraSink(t, in, at(100000, 0), 1, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource(overlay.WithName("bso"))
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if e.IsSolvable() {
		t.Fatalf("unreachable sink reported solvable")
	}
}

// TestMoreBlocksThanNodesSolvable: two mutually reachable nodes can host
// any number of blocks.
func TestMoreBlocksThanNodesSolvable(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 1, infra.WithName("nso"))
	mustInfraSink(t, in, at(1, 0), 30, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource(overlay.WithName("bso"))
	bin := ov.AddIntermediate(overlay.WithName("bin"))
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bin)
	mustLink(t, ov, bin, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if !e.IsSolvable() {
		t.Fatalf("expected solvable")
	}
}

// TestMultiHopSolvable: the sink is out of direct range but reachable
// through a relay in the middle.
func TestMultiHopSolvable(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 0)
	in.AddIntermediate(at(50, 0), 0)
	nsi := mustInfraSink(t, in, at(100, 0), 0, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource()
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	// 100 units at exponent 4 is 80 dB of loss: SINR 0 dB, below 2.
	if e.IsPossible(place(bso, nso), place(bsi, nsi), 0) {
		t.Fatalf("direct hop should be infeasible")
	}
	if !e.IsSolvable() {
		t.Fatalf("relay path exists, expected solvable")
	}
}

// TestUnreachableIntermediateNotSolvable: the frontier is not empty, but
// no node can host the intermediate block so that both of its links are
// realizable.
func TestUnreachableIntermediateNotSolvable(t *testing.T) {
	in := infra.NewNetwork()
	// Two islands far apart; the source lives on one, the sink on the
	// other.
	nso := in.AddSource(at(0, 0), 0)
	in.AddIntermediate(at(1, 0), 0)
	mustInfraSink(t, in, at(100000, 0), 0, "nsi")
	in.AddIntermediate(at(100001, 0), 0)

	ov := overlay.NewNetwork()
	bso := ov.AddSource()
	bin := ov.AddIntermediate()
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bin)
	mustLink(t, ov, bin, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if len(e.Possibilities()) == 0 {
		t.Fatalf("the source island should offer local options")
	}
	if e.IsSolvable() {
		t.Fatalf("intermediate cannot bridge the islands, expected unsolvable")
	}
}

// TestStuckEmbeddingNotSolvable: an incomplete embedding without any
// possibility is unsolvable, complete ones are solvable.
func TestStuckEmbeddingNotSolvable(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 30)
	nsi := mustInfraSink(t, in, at(1, 0), 30, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource()
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if !e.IsSolvable() {
		t.Fatalf("fresh embedding should be solvable")
	}
	mustTake(t, e, place(bso, nso), place(bsi, nsi), 0)
	if !e.IsSolvable() {
		t.Fatalf("complete embedding should be solvable")
	}
}

// TestOrphanSenderNotSolvable: a block that must send but has no inlink
// can never be placed, however many options the frontier holds.
func TestOrphanSenderNotSolvable(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 30)
	mustInfraSink(t, in, at(1, 0), 30, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource()
	orphan := ov.AddIntermediate(overlay.WithName("orphan"))
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bsi)
	mustLink(t, ov, orphan, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if len(e.Possibilities()) == 0 {
		t.Fatalf("the source should still offer options")
	}
	if e.IsSolvable() {
		t.Fatalf("orphan block can never be placed, expected unsolvable")
	}
}

// TestIsolatedBlockDoesNotBlockSolvability: an unplaced block without any
// link is irrelevant to completion.
func TestIsolatedBlockDoesNotBlockSolvability(t *testing.T) {
	in := infra.NewNetwork()
	nso := in.AddSource(at(0, 0), 30)
	mustInfraSink(t, in, at(1, 0), 30, "nsi")

	ov := overlay.NewNetwork()
	bso := ov.AddSource()
	ov.AddIntermediate(overlay.WithName("idle"))
	bsi := mustOverlaySink(t, ov, "bsi")
	mustLink(t, ov, bso, bsi)

	e := mustEmbedding(t, in, ov, []Anchor{{bso, nso}})
	if !e.IsSolvable() {
		t.Fatalf("idle block should not make the embedding unsolvable")
	}
}
