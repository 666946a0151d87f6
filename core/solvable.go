package core

// IsSolvable reports false only when the embedding provably cannot be
// completed:
//
//   - the frontier is empty while links remain unrealized,
//   - an unplaced block has pending outlinks but no inlink that could ever
//     place it, or
//   - some block has no infrastructure node left after propagating link
//     constraints over multi-hop reachability.
//
// Reachability ignores scheduling: a hop a -> b exists when a == b or
// the noise-only SINR of a -> b meets the threshold. Interference only
// lowers SINR, so a real completion never needs a hop this relation
// lacks. Deadlocks caused by timeslot contention or shared relays are not
// detected, so true does not guarantee a completion exists.
func (e *PartialEmbedding) IsSolvable() bool {
	if e.IsComplete() {
		return true
	}
	if len(e.frontier) == 0 {
		return false
	}
	if e.hasUnplaceableSender() {
		return false
	}

	reach := e.reachability()
	nodes := e.infra.Len()

	// candidates[blockID][nodeID] is true while the block may still be
	// hosted on that node.
	candidates := make(map[int][]bool)
	for _, b := range e.overlay.Blocks() {
		set := make([]bool, nodes)
		if idx, ok := e.placed[b.ID]; ok {
			set[e.vertices[idx].key.node] = true
		} else {
			for i := range set {
				set[i] = true
			}
		}
		candidates[b.ID] = set
	}

	pending := make([]struct{ from, to int }, 0)
	for _, l := range e.overlay.Links() {
		if !e.realized.Has(l.Key()) {
			pending = append(pending, struct{ from, to int }{l.From.ID, l.To.ID})
		}
	}

	for changed := true; changed; {
		changed = false
		for _, l := range pending {
			from, to := candidates[l.from], candidates[l.to]
			for a := range from {
				if from[a] && !anyReachable(reach[a], to) {
					from[a] = false
					changed = true
				}
			}
			for b := range to {
				if !to[b] {
					continue
				}
				ok := false
				for a := range from {
					if from[a] && reach[a][b] {
						ok = true
						break
					}
				}
				if !ok {
					to[b] = false
					changed = true
				}
			}
		}
	}
	for _, set := range candidates {
		if !anyTrue(set) {
			return false
		}
	}
	return true
}

// reachability is the transitive closure of single-hop feasibility.
func (e *PartialEmbedding) reachability() [][]bool {
	n := e.infra.Len()
	reach := make([][]bool, n)
	for a := 0; a < n; a++ {
		reach[a] = make([]bool, n)
		for b := 0; b < n; b++ {
			reach[a][b] = a == b ||
				e.radio.noiseOnlySINRDb(a, b, e.noiseFloorDbm) >= e.sinrThresholdDb
		}
	}
	for k := 0; k < n; k++ {
		for a := 0; a < n; a++ {
			if !reach[a][k] {
				continue
			}
			for b := 0; b < n; b++ {
				if reach[k][b] {
					reach[a][b] = true
				}
			}
		}
	}
	return reach
}

func anyReachable(row, targets []bool) bool {
	for b, ok := range targets {
		if ok && row[b] {
			return true
		}
	}
	return false
}

func anyTrue(set []bool) bool {
	for _, ok := range set {
		if ok {
			return true
		}
	}
	return false
}

// hasUnplaceableSender reports whether some block still has to send but
// can never be placed, because blocks only get a node by receiving a link.
func (e *PartialEmbedding) hasUnplaceableSender() bool {
	for _, b := range e.overlay.Blocks() {
		if _, ok := e.placed[b.ID]; ok {
			continue
		}
		if len(e.overlay.InLinks(b)) == 0 && len(e.overlay.RemainingOutlinks(b, e.realized)) > 0 {
			return true
		}
	}
	return false
}
