// Package core implements the incremental embedding engine: it tracks
// which transmissions between embedding vertices have been committed, in
// which timeslot, and which further transmissions remain legal under the
// SINR model and the overlay's link requirements.
//
// An engine is owned by a single goroutine. Independent engines share no
// mutable state and may run in parallel.
package core

import (
	"github.com/rotisserie/eris"

	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/model"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

// ErrConfig is the root of every construction failure.
var ErrConfig = eris.New("invalid embedding configuration")

// State is the coarse lifecycle of an engine.
type State int

const (
	StateBuilding State = iota
	StatePartial
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StatePartial:
		return "partial"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Anchor fixes a source block to the infrastructure node that hosts it.
type Anchor struct {
	Block *overlay.Block
	Node  *infra.Node
}

// Option customises an engine.
type Option func(*settings)

type settings struct {
	sinrThresholdDb float64
	noiseFloorDbm   float64
}

// WithSINRThreshold sets the minimum SINR in dB for a transmission to be
// considered decodable.
func WithSINRThreshold(db float64) Option {
	return func(s *settings) { s.sinrThresholdDb = db }
}

// WithNoiseFloor sets the receiver noise floor in dBm.
func WithNoiseFloor(dbm float64) Option {
	return func(s *settings) { s.noiseFloorDbm = dbm }
}

// Edge is a transmission between two embedding vertices.
type Edge struct {
	From     ENode
	To       ENode
	Timeslot int
	Chosen   bool
}

type edge struct {
	from, to int
	timeslot int
}

// PartialEmbedding is the incremental embedding engine.
type PartialEmbedding struct {
	infra   *infra.Network
	overlay *overlay.Network
	anchors []Anchor
	opts    []Option

	sinrThresholdDb float64
	noiseFloorDbm   float64
	radio           *radio

	vertices []*vertex
	index    map[vertexKey]int
	placed   map[int]int // block ID -> vertex index
	edges    []edge      // chosen, in commit order
	slots    []*slot
	realized overlay.LinkSet

	frontier []candidate
}

// NewPartialEmbedding validates the networks and anchors and returns an
// engine whose frontier is ready for the first action. Every source block
// must be anchored exactly once; the sink block is bound to the
// infrastructure sink.
func NewPartialEmbedding(in *infra.Network, ov *overlay.Network, anchors []Anchor, opts ...Option) (*PartialEmbedding, error) {
	if in == nil || ov == nil {
		return nil, eris.Wrap(ErrConfig, "infrastructure and overlay networks are required")
	}
	if err := ov.Validate(); err != nil {
		return nil, eris.Wrap(ErrConfig, err.Error())
	}
	if err := in.Validate(); err != nil {
		return nil, eris.Wrap(ErrConfig, err.Error())
	}
	seen := make(map[int]bool, len(anchors))
	for _, a := range anchors {
		if !ov.Contains(a.Block) {
			return nil, eris.Wrapf(ErrConfig, "anchor block %s is not in the overlay", a.Block)
		}
		if !in.Contains(a.Node) {
			return nil, eris.Wrapf(ErrConfig, "anchor node %s is not in the infrastructure", a.Node)
		}
		if a.Block.Role != model.RoleSource {
			return nil, eris.Wrapf(ErrConfig, "anchor block %s is a %s, not a source", a.Block, a.Block.Role)
		}
		if seen[a.Block.ID] {
			return nil, eris.Wrapf(ErrConfig, "source block %s anchored twice", a.Block)
		}
		seen[a.Block.ID] = true
	}
	for _, b := range ov.Sources() {
		if !seen[b.ID] {
			return nil, eris.Wrapf(ErrConfig, "source block %s is not anchored", b)
		}
	}

	e := &PartialEmbedding{
		infra:   in,
		overlay: ov,
		anchors: append([]Anchor(nil), anchors...),
		opts:    append([]Option(nil), opts...),
		radio:   newRadio(in),
	}
	s := settings{
		sinrThresholdDb: DefaultSINRThresholdDb,
		noiseFloorDbm:   DefaultNoiseFloorDbm,
	}
	for _, opt := range opts {
		opt(&s)
	}
	e.sinrThresholdDb = s.sinrThresholdDb
	e.noiseFloorDbm = s.noiseFloorDbm
	e.init()
	return e, nil
}

func (e *PartialEmbedding) init() {
	e.vertices = nil
	e.index = make(map[vertexKey]int)
	e.placed = make(map[int]int)
	e.edges = nil
	e.slots = nil
	e.realized = overlay.LinkSet{}

	for _, a := range e.anchors {
		idx := e.addVertex(a.Block, a.Node, -1)
		e.vertices[idx].chosen = true
	}
	// The sink is fixed from the start but only joins the committed graph
	// once a chain reaches it.
	e.addVertex(e.overlay.Sink(), e.infra.Sink(), -1)
	e.recompute()
}

// Reset returns a fresh engine over the same networks, anchors and
// options with nothing committed.
func (e *PartialEmbedding) Reset() *PartialEmbedding {
	fresh := &PartialEmbedding{
		infra:           e.infra,
		overlay:         e.overlay,
		anchors:         e.anchors,
		opts:            e.opts,
		sinrThresholdDb: e.sinrThresholdDb,
		noiseFloorDbm:   e.noiseFloorDbm,
		radio:           e.radio,
	}
	fresh.init()
	return fresh
}

func (e *PartialEmbedding) addVertex(b *overlay.Block, n *infra.Node, pred int) int {
	key := vertexKey{block: blockID(b), node: n.ID, pred: pred}
	if idx, ok := e.index[key]; ok {
		return idx
	}
	en := &ENode{Block: b, Node: n}
	origin := b
	if pred >= 0 {
		en.Predecessor = e.vertices[pred].enode
		origin = e.vertices[pred].origin
	}
	idx := len(e.vertices)
	e.vertices = append(e.vertices, &vertex{key: key, enode: en, origin: origin})
	e.index[key] = idx
	if b != nil {
		e.placed[b.ID] = idx
	}
	return idx
}

// lookup resolves a caller-supplied ENode to its arena index.
func (e *PartialEmbedding) lookup(en ENode) (int, bool) {
	if en.Node == nil {
		return -1, false
	}
	pred := -1
	if en.Predecessor != nil {
		p, ok := e.lookup(*en.Predecessor)
		if !ok {
			return -1, false
		}
		pred = p
	}
	idx, ok := e.index[vertexKey{block: blockID(en.Block), node: en.Node.ID, pred: pred}]
	return idx, ok
}

// TakeAction commits the transmission source -> target in timeslot. It
// returns false without touching any state unless the action is in the
// current frontier. A relay target may omit its predecessor; if given it
// must be source.
func (e *PartialEmbedding) TakeAction(source, target ENode, timeslot int) bool {
	c, ok := e.find(source, target, timeslot)
	if !ok {
		return false
	}
	pred := -1
	if c.target.block < 0 {
		pred = c.src
	}
	to := e.addVertex(c.block, c.node, pred)
	e.vertices[to].chosen = true

	e.edges = append(e.edges, edge{from: c.src, to: to, timeslot: timeslot})
	for len(e.slots) <= timeslot {
		e.slots = append(e.slots, newSlot())
	}
	if tx := e.vertices[c.src].key.node; tx != c.node.ID {
		e.slots[timeslot].add(c.src, tx, c.node.ID)
	}
	if c.link != nil {
		e.realized.Add(c.link.Key())
	}
	e.recompute()
	return true
}

// IsPossible reports whether source -> target in timeslot is currently in
// the frontier.
func (e *PartialEmbedding) IsPossible(source, target ENode, timeslot int) bool {
	_, ok := e.find(source, target, timeslot)
	return ok
}

func (e *PartialEmbedding) find(source, target ENode, timeslot int) (candidate, bool) {
	src, ok := e.lookup(source)
	if !ok || target.Node == nil {
		return candidate{}, false
	}
	key := vertexKey{block: blockID(target.Block), node: target.Node.ID, pred: -1}
	if target.Block == nil {
		if target.Predecessor != nil {
			p, ok := e.lookup(*target.Predecessor)
			if !ok || p != src {
				return candidate{}, false
			}
		}
		key.pred = src
	} else if target.Predecessor != nil {
		return candidate{}, false
	}
	for _, c := range e.frontier {
		if c.src == src && c.target == key && c.timeslot == timeslot {
			return c, true
		}
	}
	return candidate{}, false
}

// UsedTimeslots is one more than the highest timeslot with a chosen edge,
// or zero when nothing has been committed.
func (e *PartialEmbedding) UsedTimeslots() int {
	used := 0
	for _, ed := range e.edges {
		if ed.timeslot+1 > used {
			used = ed.timeslot + 1
		}
	}
	return used
}

// IsComplete reports whether every overlay link is carried by a committed
// chain from its source block to its target block.
func (e *PartialEmbedding) IsComplete() bool {
	for _, l := range e.overlay.Links() {
		if !e.chainRealizes(l) {
			return false
		}
	}
	return true
}

// chainRealizes looks for a chosen edge into l.To's vertex whose sender
// walks back through chosen relay hops to l.From's vertex.
func (e *PartialEmbedding) chainRealizes(l overlay.Link) bool {
	toIdx, ok := e.placed[l.To.ID]
	if !ok {
		return false
	}
	fromIdx, ok := e.placed[l.From.ID]
	if !ok {
		return false
	}
	incoming := make(map[int]bool)
	for _, ed := range e.edges {
		incoming[ed.to] = true
	}
	for _, ed := range e.edges {
		if ed.to != toIdx {
			continue
		}
		visited := make(map[int]bool)
		cur := ed.from
		for !visited[cur] {
			visited[cur] = true
			v := e.vertices[cur]
			if !v.isRelay() {
				if cur == fromIdx {
					return true
				}
				break
			}
			if !incoming[cur] {
				break
			}
			cur = v.key.pred
		}
	}
	return false
}

// State classifies the engine as building, partial or complete.
func (e *PartialEmbedding) State() State {
	switch {
	case len(e.edges) == 0 && !e.IsComplete():
		return StateBuilding
	case e.IsComplete():
		return StateComplete
	default:
		return StatePartial
	}
}

// ChosenEdges returns the committed transmissions in commit order.
func (e *PartialEmbedding) ChosenEdges() []Edge {
	out := make([]Edge, 0, len(e.edges))
	for _, ed := range e.edges {
		out = append(out, Edge{
			From:     *e.vertices[ed.from].enode,
			To:       *e.vertices[ed.to].enode,
			Timeslot: ed.timeslot,
			Chosen:   true,
		})
	}
	return out
}

// Anchors returns the source anchoring the engine was built with.
func (e *PartialEmbedding) Anchors() []Anchor {
	return append([]Anchor(nil), e.anchors...)
}

func (e *PartialEmbedding) SINRThreshold() float64    { return e.sinrThresholdDb }
func (e *PartialEmbedding) NoiseFloorDbm() float64    { return e.noiseFloorDbm }
func (e *PartialEmbedding) Infra() *infra.Network     { return e.infra }
func (e *PartialEmbedding) Overlay() *overlay.Network { return e.overlay }
