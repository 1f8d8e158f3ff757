package decision

import (
	"context"
	"fmt"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

const (
	ModeModel     = "model"
	ModeHeuristic = "heuristic"
)

// Prediction is a predictor's raw output for one record.
type Prediction struct {
	Latency  float64
	Status   string
	Action   string
	Strength float64
}

// Predictor is the decision strategy chosen once at startup.
type Predictor interface {
	Predict(ctx context.Context, r telemetry.Record) (Prediction, error)
	Mode() string
}

// ModelPredictor runs the four fitted forests over the record's features.
type ModelPredictor struct {
	models   *ModelSet
	encoders *Encoders
}

func NewModelPredictor(a *Artifacts) *ModelPredictor {
	return &ModelPredictor{models: a.Models, encoders: a.Encoders}
}

func (p *ModelPredictor) Mode() string { return ModeModel }

func (p *ModelPredictor) Predict(ctx context.Context, r telemetry.Record) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	x := r.Features()

	latency, err := p.models.Latency.Regress(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("latency model: %w", err)
	}
	statusCode, err := p.models.Status.Classify(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("status model: %w", err)
	}
	actionCode, err := p.models.Action.Classify(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("action model: %w", err)
	}
	strength, err := p.models.Strength.Regress(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("strength model: %w", err)
	}

	status := string(HeuristicStatus(latency, r.Jitter, r.PacketLoss, r.Bandwidth))
	action := ActionDefault
	if p.encoders != nil && p.encoders.Status != nil {
		if status, err = p.encoders.Status.InverseTransform(statusCode); err != nil {
			return Prediction{}, fmt.Errorf("status encoder: %w", err)
		}
	}
	if p.encoders != nil && p.encoders.Action != nil {
		if action, err = p.encoders.Action.InverseTransform(actionCode); err != nil {
			return Prediction{}, fmt.Errorf("action encoder: %w", err)
		}
	}

	return Prediction{
		Latency:  latency,
		Status:   status,
		Action:   action,
		Strength: strength,
	}, nil
}
