// Package scenario loads embedding problems from JSON: the infrastructure
// deployment, the overlay task, the anchoring of source blocks and the
// radio parameters.
package scenario

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/signalsfoundry/wsn-embedder/core"
	"github.com/signalsfoundry/wsn-embedder/infra"
	"github.com/signalsfoundry/wsn-embedder/model"
	"github.com/signalsfoundry/wsn-embedder/overlay"
)

var (
	ErrDecode        = eris.New("scenario decode failed")
	ErrUnknownName   = eris.New("scenario references an unknown name")
	ErrDuplicateName = eris.New("scenario name used twice")
	ErrBadRole       = eris.New("scenario role is invalid")
)

// Scenario is a fully resolved embedding problem.
type Scenario struct {
	Name    string
	Infra   *infra.Network
	Overlay *overlay.Network
	Anchors []core.Anchor

	// Options carries the radio parameters given in the file.
	Options []core.Option
}

// Embedding constructs a fresh engine for the scenario.
func (s *Scenario) Embedding() (*core.PartialEmbedding, error) {
	return core.NewPartialEmbedding(s.Infra, s.Overlay, s.Anchors, s.Options...)
}

// internal JSON shapes, unexported so the file format can evolve freely.
type scenarioJSON struct {
	Name             string       `json:"name"`
	PathLossExponent float64      `json:"path_loss_exponent"`
	SINRThresholdDb  *float64     `json:"sinr_threshold_db"`
	NoiseFloorDbm    *float64     `json:"noise_floor_dbm"`
	Nodes            []nodeJSON   `json:"nodes"`
	Blocks           []blockJSON  `json:"blocks"`
	Links            []linkJSON   `json:"links"`
	Anchors          []anchorJSON `json:"anchors"`
}

type nodeJSON struct {
	Name     string  `json:"name"`
	Role     string  `json:"role"` // "source" | "intermediate" | "sink"
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	PowerDbm float64 `json:"power_dbm"`
	Capacity float64 `json:"capacity"`
}

type blockJSON struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Weight *float64 `json:"weight"` // optional; defaults to 1
}

type linkJSON struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Requirement float64 `json:"requirement"`
}

type anchorJSON struct {
	Block string `json:"block"`
	Node  string `json:"node"`
}

// LoadFile opens path and decodes it with Load.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open scenario %q", path)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a JSON scenario from r and builds its networks. Names are
// the only cross references in the file, so every node and block needs a
// unique one.
func Load(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, eris.Wrap(ErrDecode, err.Error())
	}

	s := &Scenario{
		Name:    payload.Name,
		Infra:   infra.NewNetwork(infra.WithPathLossExponent(payload.PathLossExponent)),
		Overlay: overlay.NewNetwork(),
	}

	// 1) Infrastructure nodes
	nodes := make(map[string]*infra.Node, len(payload.Nodes))
	for _, jn := range payload.Nodes {
		if jn.Name == "" {
			return nil, eris.Wrap(ErrUnknownName, "node with empty name")
		}
		if _, dup := nodes[jn.Name]; dup {
			return nil, eris.Wrapf(ErrDuplicateName, "node %q", jn.Name)
		}
		pos := model.Position{X: jn.X, Y: jn.Y}
		opts := []infra.NodeOption{infra.WithName(jn.Name), infra.WithCapacity(jn.Capacity)}
		var n *infra.Node
		switch model.ParseRole(jn.Role) {
		case model.RoleSource:
			n = s.Infra.AddSource(pos, jn.PowerDbm, opts...)
		case model.RoleIntermediate:
			n = s.Infra.AddIntermediate(pos, jn.PowerDbm, opts...)
		case model.RoleSink:
			var err error
			if n, err = s.Infra.SetSink(pos, jn.PowerDbm, opts...); err != nil {
				return nil, eris.Wrapf(ErrBadRole, "node %q: %v", jn.Name, err)
			}
		default:
			return nil, eris.Wrapf(ErrBadRole, "node %q has role %q", jn.Name, jn.Role)
		}
		nodes[jn.Name] = n
	}

	// 2) Overlay blocks
	blocks := make(map[string]*overlay.Block, len(payload.Blocks))
	for _, jb := range payload.Blocks {
		if jb.Name == "" {
			return nil, eris.Wrap(ErrUnknownName, "block with empty name")
		}
		if _, dup := blocks[jb.Name]; dup {
			return nil, eris.Wrapf(ErrDuplicateName, "block %q", jb.Name)
		}
		opts := []overlay.BlockOption{overlay.WithName(jb.Name)}
		if jb.Weight != nil {
			opts = append(opts, overlay.WithWeight(*jb.Weight))
		}
		var b *overlay.Block
		switch model.ParseRole(jb.Role) {
		case model.RoleSource:
			b = s.Overlay.AddSource(opts...)
		case model.RoleIntermediate:
			b = s.Overlay.AddIntermediate(opts...)
		case model.RoleSink:
			var err error
			if b, err = s.Overlay.SetSink(opts...); err != nil {
				return nil, eris.Wrapf(ErrBadRole, "block %q: %v", jb.Name, err)
			}
		default:
			return nil, eris.Wrapf(ErrBadRole, "block %q has role %q", jb.Name, jb.Role)
		}
		blocks[jb.Name] = b
	}

	// 3) Links
	for _, jl := range payload.Links {
		from, ok := blocks[jl.From]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownName, "link source block %q", jl.From)
		}
		to, ok := blocks[jl.To]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownName, "link target block %q", jl.To)
		}
		if err := s.Overlay.AddLink(from, to, overlay.WithRequirement(jl.Requirement)); err != nil {
			return nil, eris.Wrapf(err, "link %s->%s", jl.From, jl.To)
		}
	}

	// 4) Anchors
	for _, ja := range payload.Anchors {
		b, ok := blocks[ja.Block]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownName, "anchor block %q", ja.Block)
		}
		n, ok := nodes[ja.Node]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownName, "anchor node %q", ja.Node)
		}
		s.Anchors = append(s.Anchors, core.Anchor{Block: b, Node: n})
	}

	if payload.SINRThresholdDb != nil {
		s.Options = append(s.Options, core.WithSINRThreshold(*payload.SINRThresholdDb))
	}
	if payload.NoiseFloorDbm != nil {
		s.Options = append(s.Options, core.WithNoiseFloor(*payload.NoiseFloorDbm))
	}
	return s, nil
}
