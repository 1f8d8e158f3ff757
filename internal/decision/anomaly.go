package decision

import "math"

// Fixed anomaly thresholds. They are intentionally independent from the
// status thresholds.
const (
	SpikeLatencyMs = 200.0
	SpikeJitterMs  = 20.0

	DDoSLossPct        = 5.0
	DDoSJitterMs       = 20.0
	DDoSBandwidthMbps  = 1.0
	DDoSStarvedLossPct = 2.0
)

// DetectSpike flags an abnormal latency or jitter excursion. NaN marks an
// unknown value and never triggers.
func DetectSpike(latency, jitter float64) bool {
	return (!math.IsNaN(latency) && latency > SpikeLatencyMs) ||
		(!math.IsNaN(jitter) && jitter > SpikeJitterMs)
}

// DetectDDoS flags flood-like conditions: heavy loss with high jitter, or a
// starved link that is still losing packets.
func DetectDDoS(packetLoss, jitter, bandwidth float64) bool {
	if packetLoss > DDoSLossPct && jitter > DDoSJitterMs {
		return true
	}
	return bandwidth < DDoSBandwidthMbps && packetLoss > DDoSStarvedLossPct
}
