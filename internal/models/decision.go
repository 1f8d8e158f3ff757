// Package models holds the records shared by the history store, the event
// publisher and the HTTP layer.
package models

import (
	"time"

	"github.com/bilal/switchify-netai/internal/decision"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

// OriginPredict marks decisions served by POST /predict. Records drawn by
// /telemetry_local carry the origin reported by the monitor source.
const OriginPredict = "predict"

// DecisionEvent is one served decision together with its input.
type DecisionEvent struct {
	ID               string           `json:"id"`
	CorrelationID    string           `json:"correlation_id,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	Origin           string           `json:"origin"`
	Mode             string           `json:"mode"`
	Telemetry        telemetry.Record `json:"telemetry"`
	PredictedLatency float64          `json:"predicted_latency"`
	Status           string           `json:"status"`
	ActionType       string           `json:"action_type"`
	ActionStrength   float64          `json:"action_strength"`
	Solution         string           `json:"solution"`
	Spike            bool             `json:"spike"`
	DDoSSuspected    bool             `json:"ddos_suspected"`
}

func NewDecisionEvent(origin string, r telemetry.Record, res decision.Result) DecisionEvent {
	return DecisionEvent{
		ID:               res.ID,
		Timestamp:        time.Now().UTC(),
		Origin:           origin,
		Mode:             res.Mode,
		Telemetry:        r,
		PredictedLatency: res.PredictedLatency,
		Status:           res.Status,
		ActionType:       res.ActionType,
		ActionStrength:   res.ActionStrength,
		Solution:         res.Solution,
		Spike:            res.Spike,
		DDoSSuspected:    res.DDoSSuspected,
	}
}

// StatsResponse is served by GET /stats.
type StatsResponse struct {
	TotalDecisions int64            `json:"total_decisions"`
	ByStatus       map[string]int64 `json:"by_status"`
	Spikes         int64            `json:"spikes"`
	DDoSSuspected  int64            `json:"ddos_suspected"`
	QueueLength    int              `json:"queue_length"`
	QueueDropped   uint64           `json:"queue_dropped"`
	DemoRunning    int              `json:"demo_tasks_running"`
	Mode           string           `json:"mode"`
	HistoryEnabled bool             `json:"history_enabled"`
}
