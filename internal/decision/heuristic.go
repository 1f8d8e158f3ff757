package decision

import (
	"context"
	"math"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

type Status string

const (
	StatusNormal     Status = "Normal"
	StatusDegraded   Status = "Degraded"
	StatusCongestion Status = "Network Congestion"
	StatusCritical   Status = "Critical"
)

// Known action categories. Models may emit others.
const (
	ActionSwitchNetwork     = "switch_network"
	ActionEnableQoS         = "enable_qos"
	ActionOptimizeBandwidth = "optimize_bandwidth"
	ActionRateLimit         = "rate_limit"
	ActionMonitor           = "monitor"
	ActionDefault           = "default"
)

// DefaultStrength is reported when no model supplies an action strength.
const DefaultStrength = 0.5

// HeuristicStatus classifies a sample by fixed thresholds, first match wins.
// NaN latency is treated as unmeasured.
func HeuristicStatus(latency, jitter, packetLoss, bandwidth float64) Status {
	if math.IsNaN(latency) {
		latency = telemetry.UnmeasuredLatency
	}
	switch {
	case packetLoss > 10 || latency > 800:
		return StatusCritical
	case packetLoss > 3 || latency > 250 || jitter > 40 || bandwidth < 3:
		return StatusCongestion
	case latency > 100 || jitter > 15 || bandwidth < 8:
		return StatusDegraded
	default:
		return StatusNormal
	}
}

// HeuristicPredictor is used when no trained model is available. The
// measured latency doubles as the predicted one.
type HeuristicPredictor struct{}

func (HeuristicPredictor) Mode() string { return ModeHeuristic }

func (HeuristicPredictor) Predict(_ context.Context, r telemetry.Record) (Prediction, error) {
	return Prediction{
		Latency:  r.Latency,
		Status:   string(HeuristicStatus(r.Latency, r.Jitter, r.PacketLoss, r.Bandwidth)),
		Action:   ActionDefault,
		Strength: DefaultStrength,
	}, nil
}
