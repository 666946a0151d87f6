package core

import (
	"fmt"

	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

// Kind tags the two roles an embedding vertex can play.
type Kind int

const (
	// KindAnchored vertices host an overlay block on an infrastructure node.
	KindAnchored Kind = iota
	// KindRelay vertices only forward a chain on behalf of their origin.
	KindRelay
)

func (k Kind) String() string {
	if k == KindRelay {
		return "relay"
	}
	return "anchored"
}

// ENode is a vertex of the embedding graph. Identity is structural: two
// ENodes with the same block, node and predecessor chain are the same
// vertex, regardless of where they were constructed.
//
// Block is nil for relays. Predecessor is only set on relays and points
// at the vertex that transmitted to it.
type ENode struct {
	Block       *overlay.Block
	Node        *infra.Node
	Predecessor *ENode
}

// Kind reports whether e hosts a block or relays.
func (e ENode) Kind() Kind {
	if e.Block == nil {
		return KindRelay
	}
	return KindAnchored
}

// Equal compares two vertices structurally by block, node and
// predecessor identity.
func (e ENode) Equal(o ENode) bool {
	if blockID(e.Block) != blockID(o.Block) || nodeID(e.Node) != nodeID(o.Node) {
		return false
	}
	switch {
	case e.Predecessor == nil && o.Predecessor == nil:
		return true
	case e.Predecessor == nil || o.Predecessor == nil:
		return false
	default:
		return e.Predecessor.Equal(*o.Predecessor)
	}
}

// Key returns a stable string form of the vertex identity, suitable for
// map keys and logs.
func (e ENode) Key() string {
	var head string
	if e.Block == nil {
		head = fmt.Sprintf("r@%d", nodeID(e.Node))
	} else {
		head = fmt.Sprintf("b%d@%d", e.Block.ID, nodeID(e.Node))
	}
	if e.Predecessor == nil {
		return head
	}
	return head + "<" + e.Predecessor.Key()
}

func (e ENode) String() string {
	var head string
	if e.Block == nil {
		head = fmt.Sprintf("relay@%s", e.Node)
	} else {
		head = fmt.Sprintf("%s@%s", e.Block, e.Node)
	}
	if e.Predecessor == nil {
		return head
	}
	return head + "<-" + e.Predecessor.String()
}

func blockID(b *overlay.Block) int {
	if b == nil {
		return -1
	}
	return b.ID
}

func nodeID(n *infra.Node) int {
	if n == nil {
		return -1
	}
	return n.ID
}

// vertexKey is the arena identity of a vertex: block ID (-1 for relays),
// node ID and the arena index of the predecessor (-1 for none).
type vertexKey struct {
	block int
	node  int
	pred  int
}

// vertex is an arena record. enode is allocated once and shared with
// callers; its Predecessor points into the arena.
type vertex struct {
	key    vertexKey
	enode  *ENode
	origin *overlay.Block // block whose outlinks this chain serves
	chosen bool
}

func (v *vertex) isRelay() bool { return v.key.block < 0 }
