package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/wsn-embedder/infra"
)

const (
	// DefaultSINRThresholdDb is the minimum SINR for a decodable
	// transmission.
	DefaultSINRThresholdDb = 2.0
	// DefaultNoiseFloorDbm is the thermal noise floor at every receiver.
	DefaultNoiseFloorDbm = -80.0
)

// reception records which transmission a node decodes in a timeslot.
type reception struct {
	vertex int // sending vertex
	txNode int
}

// slot is the radio activity of one timeslot, derived from the chosen
// edges. Loopback edges (same node on both ends) never appear here.
type slot struct {
	senders   map[int]int       // node ID -> sending vertex
	receivers map[int]reception // node ID -> what it decodes
}

func newSlot() *slot {
	return &slot{
		senders:   make(map[int]int),
		receivers: make(map[int]reception),
	}
}

func (s *slot) clone() *slot {
	c := newSlot()
	for k, v := range s.senders {
		c.senders[k] = v
	}
	for k, v := range s.receivers {
		c.receivers[k] = v
	}
	return c
}

func (s *slot) add(from, txNode, rxNode int) {
	s.senders[txNode] = from
	s.receivers[rxNode] = reception{vertex: from, txNode: txNode}
}

// senderIDs returns the active sender nodes in ascending order so that
// floating point sums are reproducible.
func (s *slot) senderIDs() []int {
	ids := make([]int, 0, len(s.senders))
	for id := range s.senders {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// admits applies the scheduling rules that hold independent of SINR:
// half duplex, a single decoded flow per receiver and a single origin
// per transmitter.
func (s *slot) admits(from, txNode, rxNode int) bool {
	if _, busy := s.receivers[txNode]; busy {
		return false
	}
	if _, busy := s.senders[rxNode]; busy {
		return false
	}
	if r, ok := s.receivers[rxNode]; ok && r.vertex != from {
		return false
	}
	if v, ok := s.senders[txNode]; ok && v != from {
		return false
	}
	return true
}

// radio caches pairwise received powers for one infrastructure network.
type radio struct {
	net   *infra.Network
	rxDbm [][]float64
	rxMw  [][]float64
}

func newRadio(net *infra.Network) *radio {
	nodes := net.Nodes()
	r := &radio{
		net:   net,
		rxDbm: make([][]float64, len(nodes)),
		rxMw:  make([][]float64, len(nodes)),
	}
	for _, tx := range nodes {
		r.rxDbm[tx.ID] = make([]float64, len(nodes))
		r.rxMw[tx.ID] = make([]float64, len(nodes))
		for _, rx := range nodes {
			p := net.ReceivedPowerDbm(tx, rx)
			r.rxDbm[tx.ID][rx.ID] = p
			r.rxMw[tx.ID][rx.ID] = infra.DbmToMilliwatts(p)
		}
	}
	return r
}

// sinrDb evaluates tx -> rx against every sender of s other than tx that
// is not itself serving rx. Interference is summed in milliwatts.
func (r *radio) sinrDb(s *slot, txNode, rxNode int, noiseDbm float64) float64 {
	total := infra.DbmToMilliwatts(noiseDbm)
	serving := -1
	if rec, ok := s.receivers[rxNode]; ok {
		serving = rec.txNode
	}
	for _, x := range s.senderIDs() {
		if x == txNode || x == serving {
			continue
		}
		total += r.rxMw[x][rxNode]
	}
	return r.rxDbm[txNode][rxNode] - infra.MilliwattsToDbm(total)
}

// noiseOnlySINRDb is the SINR of tx -> rx with an otherwise silent
// channel.
func (r *radio) noiseOnlySINRDb(txNode, rxNode int, noiseDbm float64) float64 {
	return r.rxDbm[txNode][rxNode] - noiseDbm
}

// feasible reports whether adding from@txNode -> rxNode to s keeps every
// transmission in the slot, old and new, at or above th.
func (r *radio) feasible(s *slot, from, txNode, rxNode int, th, noiseDbm float64) bool {
	if !s.admits(from, txNode, rxNode) {
		return false
	}
	next := s.clone()
	next.add(from, txNode, rxNode)
	rxIDs := make([]int, 0, len(next.receivers))
	for id := range next.receivers {
		rxIDs = append(rxIDs, id)
	}
	sort.Ints(rxIDs)
	for _, rx := range rxIDs {
		if r.sinrDb(next, next.receivers[rx].txNode, rx, noiseDbm) < th {
			return false
		}
	}
	return true
}

// powerAtMw sums the power node receives from every distinct sender in s
// other than itself.
func (r *radio) powerAtMw(s *slot, node int) float64 {
	var total float64
	for _, x := range s.senderIDs() {
		if x == node {
			continue
		}
		total += r.rxMw[x][node]
	}
	return total
}

// KnownSINR returns the SINR in dB that rx would observe from tx in the
// given timeslot, against the transmissions already chosen there. An
// optional noise floor overrides the engine's. Unknown nodes and negative
// timeslots yield negative infinity.
func (e *PartialEmbedding) KnownSINR(tx, rx *infra.Node, timeslot int, noiseFloorDbm ...float64) float64 {
	if timeslot < 0 || !e.infra.Contains(tx) || !e.infra.Contains(rx) {
		return math.Inf(-1)
	}
	noise := e.noiseFloorDbm
	if len(noiseFloorDbm) > 0 {
		noise = noiseFloorDbm[0]
	}
	return e.radio.sinrDb(e.slotAt(timeslot), tx.ID, rx.ID, noise)
}

// PowerAtNode returns the aggregate power in milliwatts that node receives
// in timeslot from all chosen senders, each sender counted once even when
// it broadcasts. Unknown nodes and unused timeslots yield zero.
func (e *PartialEmbedding) PowerAtNode(node *infra.Node, timeslot int) float64 {
	if timeslot < 0 || !e.infra.Contains(node) {
		return 0
	}
	return e.radio.powerAtMw(e.slotAt(timeslot), node.ID)
}

// PowerAtNodeDbm is PowerAtNode in dBm; no power maps to negative
// infinity.
func (e *PartialEmbedding) PowerAtNodeDbm(node *infra.Node, timeslot int) float64 {
	return infra.MilliwattsToDbm(e.PowerAtNode(node, timeslot))
}

func (e *PartialEmbedding) slotAt(timeslot int) *slot {
	if timeslot >= 0 && timeslot < len(e.slots) {
		return e.slots[timeslot]
	}
	return newSlot()
}
