package core

import (
	"testing"

	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/model"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

func at(x, y float64) model.Position { return model.Position{X: x, Y: y} }

func mustInfraSink(t *testing.T, net *infra.Network, p model.Position, power float64, name string) *infra.Node {
	t.Helper()
	n, err := net.SetSink(p, power, infra.WithName(name))
	if err != nil {
		t.Fatalf("infra SetSink: %v", err)
	}
	return n
}

func mustOverlaySink(t *testing.T, net *overlay.Network, name string) *overlay.Block {
	t.Helper()
	b, err := net.SetSink(overlay.WithName(name))
	if err != nil {
		t.Fatalf("overlay SetSink: %v", err)
	}
	return b
}

func mustLink(t *testing.T, net *overlay.Network, u, v *overlay.Block) {
	t.Helper()
	if err := net.AddLink(u, v); err != nil {
		t.Fatalf("AddLink %s->%s: %v", u, v, err)
	}
}

func mustEmbedding(t *testing.T, in *infra.Network, ov *overlay.Network, anchors []Anchor, opts ...Option) *PartialEmbedding {
	t.Helper()
	e, err := NewPartialEmbedding(in, ov, anchors, opts...)
	if err != nil {
		t.Fatalf("NewPartialEmbedding: %v", err)
	}
	return e
}

func mustTake(t *testing.T, e *PartialEmbedding, src, dst ENode, ts int) {
	t.Helper()
	if !e.TakeAction(src, dst, ts) {
		t.Fatalf("TakeAction(%s, %s, %d) rejected; frontier: %v", src, dst, ts, e.Possibilities())
	}
}

func place(b *overlay.Block, n *infra.Node) ENode { return ENode{Block: b, Node: n} }

func relayAt(n *infra.Node) ENode { return ENode{Node: n} }

func relayFrom(n *infra.Node, pred ENode) ENode {
	p := pred
	return ENode{Node: n, Predecessor: &p}
}

func possibilitiesFrom(e *PartialEmbedding, src ENode) []Possibility {
	var out []Possibility
	for _, p := range e.Possibilities() {
		if p.Source.Equal(src) {
			out = append(out, p)
		}
	}
	return out
}

func keys(ps []Possibility) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// keySet turns possibilities into a set for order-independent checks.
func keySet(ps []Possibility) map[string]bool {
	out := make(map[string]bool, len(ps))
	for _, p := range ps {
		out[p.Key()] = true
	}
	return out
}

func wantSet(src ENode, ts int, targets ...ENode) map[string]bool {
	out := make(map[string]bool, len(targets))
	for _, dst := range targets {
		out[Possibility{Source: src, Target: dst, Timeslot: ts}.Key()] = true
	}
	return out
}

func equalSets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
