// Package infra models the physical wireless deployment: radio nodes with
// positions and transmit powers, and the log-distance path loss between
// them.
package infra

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/signalsfoundry/wsn-embedder/model"
)

var (
	// ErrSinkExists is returned when a second sink is added to a network.
	ErrSinkExists = eris.New("infrastructure network already has a sink")
	// ErrNoSink is returned by Validate when no sink was set.
	ErrNoSink = eris.New("infrastructure network has no sink")
)

// Node is a physical radio node. Nodes are created through a Network and
// are immutable afterwards.
type Node struct {
	ID               int
	Name             string
	Pos              model.Position
	TransmitPowerDbm float64
	// Capacity is optional metadata (0 = unspecified). The engine does
	// not enforce it.
	Capacity float64
	Role     model.Role
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("N%d", n.ID)
}

// NodeOption customises a node at creation time.
type NodeOption func(*Node)

// WithName sets a human-readable node name.
func WithName(name string) NodeOption {
	return func(n *Node) {
		n.Name = name
	}
}

// WithCapacity records the node's processing capacity.
func WithCapacity(c float64) NodeOption {
	return func(n *Node) {
		n.Capacity = c
	}
}

// Network is the registry of infrastructure nodes. It is built once and
// then only queried; it holds no locks because it is never mutated after
// construction.
type Network struct {
	nodes            []*Node
	sink             *Node
	pathLossExponent float64
}

// Option customises a Network.
type Option func(*Network)

// WithPathLossExponent overrides the log-distance path loss exponent
// (default DefaultPathLossExponent).
func WithPathLossExponent(exp float64) Option {
	return func(n *Network) {
		if exp > 0 {
			n.pathLossExponent = exp
		}
	}
}

// NewNetwork constructs an empty infrastructure network.
func NewNetwork(opts ...Option) *Network {
	n := &Network{pathLossExponent: DefaultPathLossExponent}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AddSource adds a node that hosts source blocks.
func (n *Network) AddSource(pos model.Position, transmitPowerDbm float64, opts ...NodeOption) *Node {
	return n.add(model.RoleSource, pos, transmitPowerDbm, opts)
}

// AddIntermediate adds a node that can host intermediate blocks or relay.
func (n *Network) AddIntermediate(pos model.Position, transmitPowerDbm float64, opts ...NodeOption) *Node {
	return n.add(model.RoleIntermediate, pos, transmitPowerDbm, opts)
}

// SetSink adds the unique sink node. It fails if a sink already exists.
func (n *Network) SetSink(pos model.Position, transmitPowerDbm float64, opts ...NodeOption) (*Node, error) {
	if n.sink != nil {
		return nil, eris.Wrapf(ErrSinkExists, "existing sink %s", n.sink)
	}
	node := n.add(model.RoleSink, pos, transmitPowerDbm, opts)
	n.sink = node
	return node, nil
}

func (n *Network) add(role model.Role, pos model.Position, powerDbm float64, opts []NodeOption) *Node {
	node := &Node{
		ID:               len(n.nodes),
		Pos:              pos,
		TransmitPowerDbm: powerDbm,
		Role:             role,
	}
	for _, opt := range opts {
		opt(node)
	}
	n.nodes = append(n.nodes, node)
	return node
}

// Validate checks the structural invariants of the network.
func (n *Network) Validate() error {
	if n.sink == nil {
		return ErrNoSink
	}
	return nil
}

// Nodes returns all nodes ordered by ID. The slice is a copy; the nodes
// are shared and must be treated as read-only.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, len(n.nodes))
	copy(out, n.nodes)
	return out
}

// Len returns the number of nodes.
func (n *Network) Len() int { return len(n.nodes) }

// Node returns the node with the given ID, or nil if out of range.
func (n *Network) Node(id int) *Node {
	if id < 0 || id >= len(n.nodes) {
		return nil
	}
	return n.nodes[id]
}

// Sources returns all source nodes ordered by ID.
func (n *Network) Sources() []*Node {
	var out []*Node
	for _, node := range n.nodes {
		if node.Role == model.RoleSource {
			out = append(out, node)
		}
	}
	return out
}

// Sink returns the sink node, or nil if none was set.
func (n *Network) Sink() *Node { return n.sink }

// Contains reports whether node was created by this network.
func (n *Network) Contains(node *Node) bool {
	if node == nil {
		return false
	}
	return n.Node(node.ID) == node
}

// NodeByName returns the first node with the given name.
func (n *Network) NodeByName(name string) *Node {
	for _, node := range n.nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}
