// Package overlay models the logical communication task: blocks that
// produce, process or consume data, and the directed links between them
// that must be realized on the infrastructure.
package overlay

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/signalsfoundry/wsn-embedder/model"
)

var (
	ErrSinkExists    = eris.New("overlay network already has a sink")
	ErrNoSink        = eris.New("overlay network has no sink")
	ErrNoSource      = eris.New("overlay network has no source")
	ErrUnknownBlock  = eris.New("block does not belong to this overlay network")
	ErrSelfLink      = eris.New("link endpoints must differ")
	ErrDuplicateLink = eris.New("link already exists")
)

// Block is a logical unit of the task. Blocks are created through a
// Network and are immutable afterwards.
type Block struct {
	ID   int
	Name string
	Role model.Role
	// Weight is the block's required throughput. Informational only.
	Weight float64
}

func (b *Block) String() string {
	if b == nil {
		return "<nil>"
	}
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("B%d", b.ID)
}

// Link is a required directed data flow between two blocks.
type Link struct {
	From *Block
	To   *Block
	// Requirement annotates the link with a feasibility context (e.g. a
	// per-link SINR hint). The engine applies its global threshold.
	Requirement float64
}

// Key identifies a link by its endpoint IDs.
func (l Link) Key() LinkKey {
	return LinkKey{From: l.From.ID, To: l.To.ID}
}

func (l Link) String() string {
	return fmt.Sprintf("%s->%s", l.From, l.To)
}

// LinkKey is the comparable identity of a link.
type LinkKey struct {
	From int
	To   int
}

// LinkSet is a set of links, used by callers to track realization.
type LinkSet map[LinkKey]struct{}

// Add inserts a link key.
func (s LinkSet) Add(k LinkKey) { s[k] = struct{}{} }

// Has reports whether k is present.
func (s LinkSet) Has(k LinkKey) bool {
	_, ok := s[k]
	return ok
}

// BlockOption customises a block at creation time.
type BlockOption func(*Block)

// WithName sets a human-readable block name.
func WithName(name string) BlockOption {
	return func(b *Block) { b.Name = name }
}

// WithWeight sets the block's required throughput.
func WithWeight(w float64) BlockOption {
	return func(b *Block) { b.Weight = w }
}

// LinkOption customises a link.
type LinkOption func(*Link)

// WithRequirement annotates a link.
func WithRequirement(r float64) LinkOption {
	return func(l *Link) { l.Requirement = r }
}

// Network is the registry of blocks and links. Cycles are permitted.
type Network struct {
	blocks []*Block
	sink   *Block
	links  []Link
	out    map[int][]int // block ID -> indices into links
	in     map[int][]int
}

// NewNetwork constructs an empty overlay network.
func NewNetwork() *Network {
	return &Network{
		out: make(map[int][]int),
		in:  make(map[int][]int),
	}
}

// AddSource adds a data-producing block.
func (n *Network) AddSource(opts ...BlockOption) *Block {
	return n.add(model.RoleSource, opts)
}

// AddIntermediate adds a processing block.
func (n *Network) AddIntermediate(opts ...BlockOption) *Block {
	return n.add(model.RoleIntermediate, opts)
}

// SetSink adds the unique data-consuming block.
func (n *Network) SetSink(opts ...BlockOption) (*Block, error) {
	if n.sink != nil {
		return nil, eris.Wrapf(ErrSinkExists, "existing sink %s", n.sink)
	}
	b := n.add(model.RoleSink, opts)
	n.sink = b
	return b, nil
}

func (n *Network) add(role model.Role, opts []BlockOption) *Block {
	b := &Block{ID: len(n.blocks), Role: role, Weight: 1}
	for _, opt := range opts {
		opt(b)
	}
	n.blocks = append(n.blocks, b)
	return b
}

// AddLink adds the required link u -> v.
func (n *Network) AddLink(u, v *Block, opts ...LinkOption) error {
	if !n.Contains(u) {
		return eris.Wrapf(ErrUnknownBlock, "link source %s", u)
	}
	if !n.Contains(v) {
		return eris.Wrapf(ErrUnknownBlock, "link target %s", v)
	}
	if u == v {
		return eris.Wrapf(ErrSelfLink, "block %s", u)
	}
	if n.HasLink(u, v) {
		return eris.Wrapf(ErrDuplicateLink, "%s->%s", u, v)
	}
	l := Link{From: u, To: v}
	for _, opt := range opts {
		opt(&l)
	}
	idx := len(n.links)
	n.links = append(n.links, l)
	n.out[u.ID] = append(n.out[u.ID], idx)
	n.in[v.ID] = append(n.in[v.ID], idx)
	return nil
}

// Validate checks that the overlay has exactly one sink and at least one
// source.
func (n *Network) Validate() error {
	if n.sink == nil {
		return ErrNoSink
	}
	if len(n.Sources()) == 0 {
		return ErrNoSource
	}
	return nil
}

// Blocks returns all blocks ordered by ID.
func (n *Network) Blocks() []*Block {
	out := make([]*Block, len(n.blocks))
	copy(out, n.blocks)
	return out
}

// Block returns the block with the given ID, or nil.
func (n *Network) Block(id int) *Block {
	if id < 0 || id >= len(n.blocks) {
		return nil
	}
	return n.blocks[id]
}

// Sources returns the source blocks ordered by ID.
func (n *Network) Sources() []*Block {
	var out []*Block
	for _, b := range n.blocks {
		if b.Role == model.RoleSource {
			out = append(out, b)
		}
	}
	return out
}

// Sink returns the sink block, or nil.
func (n *Network) Sink() *Block { return n.sink }

// Contains reports whether b was created by this network.
func (n *Network) Contains(b *Block) bool {
	if b == nil {
		return false
	}
	return n.Block(b.ID) == b
}

// BlockByName returns the first block with the given name.
func (n *Network) BlockByName(name string) *Block {
	for _, b := range n.blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Links returns all links in insertion order.
func (n *Network) Links() []Link {
	out := make([]Link, len(n.links))
	copy(out, n.links)
	return out
}

// OutLinks returns the links leaving b in insertion order.
func (n *Network) OutLinks(b *Block) []Link {
	return n.collect(n.out[b.ID])
}

// InLinks returns the links entering b in insertion order.
func (n *Network) InLinks(b *Block) []Link {
	return n.collect(n.in[b.ID])
}

func (n *Network) collect(idx []int) []Link {
	out := make([]Link, 0, len(idx))
	for _, i := range idx {
		out = append(out, n.links[i])
	}
	return out
}

// HasLink reports whether u -> v is a required link.
func (n *Network) HasLink(u, v *Block) bool {
	if u == nil || v == nil {
		return false
	}
	for _, i := range n.out[u.ID] {
		if n.links[i].To.ID == v.ID {
			return true
		}
	}
	return false
}

// RemainingOutlinks returns the outgoing links of b that are not yet in
// realized, in insertion order.
func (n *Network) RemainingOutlinks(b *Block, realized LinkSet) []Link {
	var out []Link
	for _, l := range n.OutLinks(b) {
		if !realized.Has(l.Key()) {
			out = append(out, l)
		}
	}
	return out
}
