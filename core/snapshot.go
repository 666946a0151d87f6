package core

// Vertex is a read-only view of an embedding vertex.
type Vertex struct {
	ENode  ENode
	Kind   Kind
	Chosen bool
}

// Snapshot is a read-only copy of the embedding graph: every known
// vertex, the chosen edges, and the frontier as unchosen edges. It is
// what renderers and feature extractors consume.
type Snapshot struct {
	Vertices      []Vertex
	Edges         []Edge
	UsedTimeslots int
	State         State
}

// Snapshot captures the current embedding graph.
func (e *PartialEmbedding) Snapshot() Snapshot {
	snap := Snapshot{
		Vertices:      make([]Vertex, 0, len(e.vertices)),
		Edges:         e.ChosenEdges(),
		UsedTimeslots: e.UsedTimeslots(),
		State:         e.State(),
	}
	for _, v := range e.vertices {
		snap.Vertices = append(snap.Vertices, Vertex{
			ENode:  *v.enode,
			Kind:   v.enode.Kind(),
			Chosen: v.chosen,
		})
	}
	for _, p := range e.Possibilities() {
		snap.Edges = append(snap.Edges, Edge{
			From:     p.Source,
			To:       p.Target,
			Timeslot: p.Timeslot,
		})
	}
	return snap
}

// ChosenCount returns the number of chosen edges in the snapshot.
func (s Snapshot) ChosenCount() int {
	n := 0
	for _, ed := range s.Edges {
		if ed.Chosen {
			n++
		}
	}
	return n
}
