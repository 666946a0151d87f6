package core

import (
	"fmt"

	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

// Possibility is a transmission that can currently be committed. For a
// relay target the Predecessor is left empty; TakeAction wires it to
// Source.
type Possibility struct {
	Source   ENode
	Target   ENode
	Timeslot int
}

// Key is a stable string identity for the possibility.
func (p Possibility) Key() string {
	return fmt.Sprintf("%s>%s@%d", p.Source.Key(), p.Target.Key(), p.Timeslot)
}

func (p Possibility) String() string {
	return fmt.Sprintf("%s -> %s @ts%d", p.Source, p.Target, p.Timeslot)
}

// candidate is the internal form of a frontier entry.
type candidate struct {
	src      int
	target   vertexKey // pred holds src for relays
	block    *overlay.Block
	node     *infra.Node
	link     *overlay.Link // realized on commit, nil for relays
	timeslot int
}

// target is a destination considered for a sending vertex, before
// scheduling.
type target struct {
	key   vertexKey
	block *overlay.Block
	node  *infra.Node
	link  *overlay.Link
}

// Possibilities returns the current frontier in a deterministic order:
// by sending vertex, then timeslot, then target.
func (e *PartialEmbedding) Possibilities() []Possibility {
	out := make([]Possibility, 0, len(e.frontier))
	for _, c := range e.frontier {
		out = append(out, e.possibility(c))
	}
	return out
}

// FrontierSize is len(Possibilities()) without building the slice.
func (e *PartialEmbedding) FrontierSize() int { return len(e.frontier) }

func (e *PartialEmbedding) possibility(c candidate) Possibility {
	return Possibility{
		Source:   *e.vertices[c.src].enode,
		Target:   ENode{Block: c.block, Node: c.node},
		Timeslot: c.timeslot,
	}
}

// recompute rebuilds the frontier from the committed state.
func (e *PartialEmbedding) recompute() {
	e.frontier = e.frontier[:0]
	if e.IsComplete() {
		return
	}
	used := e.UsedTimeslots()
	forwarded := e.senders()
	for idx, v := range e.vertices {
		if !v.chosen {
			continue
		}
		targets := e.targetsFrom(idx, forwarded)
		if len(targets) == 0 {
			continue
		}
		radio := false
		for ts := 0; ts < used; ts++ {
			if e.schedule(idx, targets, ts, true) {
				radio = true
			}
		}
		// Hand-overs on the same node fit every slot, so they never keep
		// the radio targets out of a fresh one.
		if !radio {
			e.schedule(idx, targets, used, used == 0)
		}
	}
}

// schedule appends every target that fits into timeslot ts and reports
// whether a radio target did. Same-node targets are only appended if local
// is set.
func (e *PartialEmbedding) schedule(src int, targets []target, ts int, local bool) bool {
	s := e.slotAt(ts)
	txNode := e.vertices[src].key.node
	radio := false
	for _, t := range targets {
		switch {
		case t.node.ID == txNode:
			if !local {
				continue
			}
		case e.radio.feasible(s, src, txNode, t.node.ID, e.sinrThresholdDb, e.noiseFloorDbm):
			radio = true
		default:
			continue
		}
		e.frontier = append(e.frontier, candidate{
			src:      src,
			target:   t.key,
			block:    t.block,
			node:     t.node,
			link:     t.link,
			timeslot: ts,
		})
	}
	return radio
}

// targetsFrom lists the destinations vertex idx may transmit to, subject
// to its origin's outlink budget.
func (e *PartialEmbedding) targetsFrom(idx int, forwarded map[int]bool) []target {
	v := e.vertices[idx]
	pending := e.overlay.RemainingOutlinks(v.origin, e.realized)
	if len(pending) == 0 || !e.mayStartChain(idx, len(pending), forwarded) {
		return nil
	}

	var out []target
	nodes := e.infra.Nodes()
	for i := range pending {
		l := pending[i]
		if at, ok := e.placed[l.To.ID]; ok {
			tv := e.vertices[at]
			out = append(out, target{key: tv.key, block: l.To, node: tv.enode.Node, link: &l})
			continue
		}
		for _, n := range nodes {
			out = append(out, target{
				key:   vertexKey{block: l.To.ID, node: n.ID, pred: -1},
				block: l.To,
				node:  n,
				link:  &l,
			})
		}
	}
	for _, n := range nodes {
		if n.ID == v.key.node {
			continue
		}
		key := vertexKey{block: -1, node: n.ID, pred: idx}
		if _, exists := e.index[key]; exists {
			continue
		}
		out = append(out, target{key: key, node: n})
	}
	return out
}

// mayStartChain applies the outlink budget. A relay that has not yet
// forwarded always continues its chain. Any other vertex may open a new
// chain only while the origin has more unrealized outlinks than open
// relay chains.
func (e *PartialEmbedding) mayStartChain(idx, unrealized int, forwarded map[int]bool) bool {
	v := e.vertices[idx]
	if v.isRelay() && !forwarded[idx] {
		return true
	}
	open := 0
	for i, w := range e.vertices {
		if w.isRelay() && w.chosen && w.origin.ID == v.origin.ID && !forwarded[i] {
			open++
		}
	}
	return unrealized-open > 0
}

// senders is the set of vertices with at least one chosen outgoing edge.
func (e *PartialEmbedding) senders() map[int]bool {
	out := make(map[int]bool, len(e.edges))
	for _, ed := range e.edges {
		out[ed.from] = true
	}
	return out
}
