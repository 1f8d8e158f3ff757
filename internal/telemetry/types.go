package telemetry

import (
	"math"
	"time"
)

// UnmeasuredLatency marks a latency or jitter that could not be measured.
const UnmeasuredLatency = 999.0

// Record is one telemetry sample as it flows through the decision pipeline.
type Record struct {
	Latency        float64 `json:"latency"`
	Jitter         float64 `json:"jitter"`
	PacketLoss     float64 `json:"packet_loss"`
	Bandwidth      float64 `json:"bandwidth"`
	SignalStrength float64 `json:"signal_strength"`
	Timestamp      int64   `json:"timestamp"` // ms since epoch
}

// Collected is the client-facing view of a served record.
type Collected struct {
	LatencyMeasured float64 `json:"latency_measured"`
	JitterMeasured  float64 `json:"jitter_measured"`
	PacketLoss      float64 `json:"packet_loss"`
	Bandwidth       float64 `json:"bandwidth"`
	SignalStrength  float64 `json:"signal_strength"`
	Timestamp       int64   `json:"timestamp"`
}

// Rounded returns a copy with the measured quantities rounded to 3 places
// and the timestamp set to servedAt.
func (r Record) Rounded(servedAt time.Time) Record {
	return Record{
		Latency:        Round3(r.Latency),
		Jitter:         Round3(r.Jitter),
		PacketLoss:     Round3(r.PacketLoss),
		Bandwidth:      Round3(r.Bandwidth),
		SignalStrength: r.SignalStrength,
		Timestamp:      servedAt.UnixMilli(),
	}
}

func (r Record) Collected() Collected {
	return Collected{
		LatencyMeasured: r.Latency,
		JitterMeasured:  r.Jitter,
		PacketLoss:      r.PacketLoss,
		Bandwidth:       r.Bandwidth,
		SignalStrength:  r.SignalStrength,
		Timestamp:       r.Timestamp,
	}
}

// Features is the model input vector. Order must match training.
func (r Record) Features() []float64 {
	return []float64{r.Jitter, r.PacketLoss, r.Bandwidth, r.SignalStrength}
}

func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// NowMillis is the ingestion timestamp used for new records.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
