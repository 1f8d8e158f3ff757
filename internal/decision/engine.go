package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bilal/switchify-netai/internal/metrics"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

// ErrModelUnavailable is returned for operations that need a trained model
// while the engine runs on heuristics.
var ErrModelUnavailable = errors.New("model not loaded on server")

// ModelUnavailableMessage is the client-facing text for ErrModelUnavailable.
const ModelUnavailableMessage = "Model not loaded on server"

// Result is the decision for one telemetry record.
type Result struct {
	ID               string  `json:"-"`
	Mode             string  `json:"-"`
	PredictedLatency float64 `json:"predicted_latency"`
	Status           string  `json:"status"`
	ActionType       string  `json:"action_type"`
	ActionStrength   float64 `json:"action_strength"`
	Solution         string  `json:"solution"`
	Spike            bool    `json:"spike"`
	DDoSSuspected    bool    `json:"ddos_suspected"`
}

// Engine turns telemetry into decisions. It is safe for concurrent use;
// the predictor and selector are immutable after construction.
type Engine struct {
	predictor Predictor
	selector  *Selector
}

func NewEngine(p Predictor, s *Selector) *Engine {
	if p == nil {
		p = HeuristicPredictor{}
	}
	if s == nil {
		s = NewSelector()
	}
	return &Engine{predictor: p, selector: s}
}

// NewEngineFromArtifacts picks the model-backed strategy when artifacts are
// present and the heuristic one otherwise.
func NewEngineFromArtifacts(a *Artifacts) *Engine {
	if a == nil || a.Models == nil {
		return NewEngine(HeuristicPredictor{}, NewSelector())
	}
	return NewEngine(NewModelPredictor(a), NewSelector())
}

func (e *Engine) Mode() string { return e.predictor.Mode() }

func (e *Engine) ModelLoaded() bool { return e.predictor.Mode() == ModeModel }

func (e *Engine) Selector() *Selector { return e.selector }

// RequireModel fails with ErrModelUnavailable in heuristic mode.
func (e *Engine) RequireModel() error {
	if !e.ModelLoaded() {
		return ErrModelUnavailable
	}
	return nil
}

func (e *Engine) Decide(ctx context.Context, r telemetry.Record) (Result, error) {
	pred, err := e.predictor.Predict(ctx, r)
	if err != nil {
		metrics.DecisionErrors.Inc()
		return Result{}, fmt.Errorf("predict: %w", err)
	}

	res := Result{
		ID:               uuid.NewString(),
		Mode:             e.predictor.Mode(),
		PredictedLatency: pred.Latency,
		Status:           pred.Status,
		ActionType:       pred.Action,
		ActionStrength:   pred.Strength,
		Solution:         e.selector.Select(pred.Action, pred.Strength, r),
		Spike:            DetectSpike(pred.Latency, r.Jitter),
		DDoSSuspected:    DetectDDoS(r.PacketLoss, r.Jitter, r.Bandwidth),
	}

	metrics.ObserveDecision(res.Status, res.Mode, res.Spike, res.DDoSSuspected)

	log.Debug().
		Str("decision_id", res.ID).
		Str("mode", res.Mode).
		Str("status", res.Status).
		Str("action", res.ActionType).
		Float64("predicted_latency", res.PredictedLatency).
		Bool("spike", res.Spike).
		Bool("ddos", res.DDoSSuspected).
		Msg("decision evaluated")

	return res, nil
}
