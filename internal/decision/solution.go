package decision

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

// Templates maps an action category to its candidate solutions. Read-only.
var Templates = map[string][]string{
	ActionSwitchNetwork: {
		"Switch to a stronger network (move closer to AP / use wired).",
		"Switch device to 5GHz Wi-Fi or wired Ethernet.",
		"Disconnect and re-join the network to force a better AP.",
		"Change router channel to avoid interference.",
		"If available, use the higher-throughput SSID.",
	},
	ActionEnableQoS: {
		"Enable QoS and prioritize real-time apps.",
		"Create QoS rule to limit background downloads.",
		"Map real-time traffic to a high-priority queue.",
	},
	ActionOptimizeBandwidth: {
		"Limit background uploads/downloads.",
		"Pause high-bandwidth streams on other devices.",
		"Use bandwidth management tools.",
	},
	ActionRateLimit: {
		"Enable rate limiting on router and block suspicious IPs.",
		"Apply connection limits to stop flood-style traffic.",
		"Contact ISP for mitigation if attack is sustained.",
	},
	ActionMonitor: {
		"No immediate action — continue monitoring.",
		"Gather longer logs before acting.",
	},
	ActionDefault: {
		"Investigate further: collect more telemetry and restart equipment if needed.",
	},
}

// Selector picks one templated solution per decision.
type Selector struct {
	templates map[string][]string
}

func NewSelector() *Selector {
	return &Selector{templates: Templates}
}

func (s *Selector) candidates(action string) []string {
	if pool, ok := s.templates[action]; ok && len(pool) > 0 {
		return pool
	}
	return s.templates[ActionDefault]
}

// Score combines strength and link stress, rounded to 3 places.
// Invalid strengths count as zero.
func Score(strength float64, r telemetry.Record) float64 {
	score := 0.0
	if !math.IsNaN(strength) && !math.IsInf(strength, 0) {
		score += strength
	}
	score += r.Jitter / 100.0
	score += r.PacketLoss / 10.0
	return telemetry.Round3(score)
}

// Select returns the solution for action. The index is an xxhash of the
// rounded score, so identical inputs map to the same text in every run.
func (s *Selector) Select(action string, strength float64, r telemetry.Record) string {
	pool := s.candidates(action)
	key := strconv.FormatFloat(Score(strength, r), 'f', -1, 64)
	idx := xxhash.Sum64String(key) % uint64(len(pool))
	return pool[idx]
}

// Alternatives returns up to n leading candidates for action.
func (s *Selector) Alternatives(action string, n int) []string {
	pool := s.candidates(action)
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, n)
	copy(out, pool[:n])
	return out
}
