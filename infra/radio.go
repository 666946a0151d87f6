package infra

import "math"

const (
	// DefaultPathLossExponent is appropriate for indoor deployments.
	DefaultPathLossExponent = 4.0
	// ReferenceDistance is the distance (in position units) at which the
	// path loss is 0 dB. Shorter distances are clamped to it.
	ReferenceDistance = 1.0
)

// PathLossExponent returns the exponent used by PathLossDb.
func (n *Network) PathLossExponent() float64 { return n.pathLossExponent }

// Distance returns the Euclidean distance between two nodes.
func (n *Network) Distance(a, b *Node) float64 {
	return a.Pos.DistanceTo(b.Pos)
}

// PathLossDb applies the log-distance model:
//
//	exponent * 10 * log10(max(d, ReferenceDistance))
func (n *Network) PathLossDb(distance float64) float64 {
	if distance < ReferenceDistance {
		distance = ReferenceDistance
	}
	return n.pathLossExponent * 10 * math.Log10(distance/ReferenceDistance)
}

// ReceivedPowerDbm is the power rx observes from tx's transmission.
func (n *Network) ReceivedPowerDbm(tx, rx *Node) float64 {
	return tx.TransmitPowerDbm - n.PathLossDb(n.Distance(tx, rx))
}

// DbmToMilliwatts converts a dBm power level to the linear domain.
func DbmToMilliwatts(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// MilliwattsToDbm converts linear power back to dBm. Zero power maps to
// negative infinity.
func MilliwattsToDbm(mw float64) float64 {
	if mw <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(mw)
}
