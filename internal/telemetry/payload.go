package telemetry

import "math"

// Placeholder link quality assigned to pushed samples, which carry none.
const (
	PushedBandwidth = 10.0
	PushedSignal    = 70.0
)

// PushPayload is what the external telemetry sender posts.
type PushPayload struct {
	CPU        Number `json:"cpu"`
	RAM        Number `json:"ram"`
	Jitter     Number `json:"jitter"`
	PacketLoss Number `json:"packet_loss"`
	RTT        Number `json:"rtt"`
}

// FromPush maps a pushed payload onto a Record. rtt is the measured latency.
func FromPush(p PushPayload, nowMillis int64) Record {
	return Record{
		Latency:        math.Max(p.RTT.Or(0), 0),
		Jitter:         math.Max(p.Jitter.Or(0), 0),
		PacketLoss:     math.Max(p.PacketLoss.Or(0), 0),
		Bandwidth:      PushedBandwidth,
		SignalStrength: PushedSignal,
		Timestamp:      nowMillis,
	}
}

// FeaturePayload carries the four model features posted to /predict and
// /suggest_mitigation.
type FeaturePayload struct {
	Jitter         Number `json:"jitter"`
	PacketLoss     Number `json:"packet_loss"`
	Bandwidth      Number `json:"bandwidth"`
	SignalStrength Number `json:"signal_strength"`
}

// Record builds a record from the features. Latency is left at the
// unmeasured sentinel; callers predicting it overwrite the value.
func (p FeaturePayload) Record(nowMillis int64) Record {
	return Record{
		Latency:        UnmeasuredLatency,
		Jitter:         p.Jitter.Or(0),
		PacketLoss:     p.PacketLoss.Or(0),
		Bandwidth:      p.Bandwidth.Or(0),
		SignalStrength: p.SignalStrength.Or(0),
		Timestamp:      nowMillis,
	}
}
