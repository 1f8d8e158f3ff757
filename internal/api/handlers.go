package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/bilal/switchify-netai/internal/cache"
	"github.com/bilal/switchify-netai/internal/decision"
	"github.com/bilal/switchify-netai/internal/demo"
	"github.com/bilal/switchify-netai/internal/metrics"
	"github.com/bilal/switchify-netai/internal/models"
	"github.com/bilal/switchify-netai/internal/monitor"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

const (
	IndexMessage     = "Latency AI backend running. Use /telemetry_local and /predict."
	ReceivedMessage  = "Telemetry received"
	DDoSDemoMessage  = "DDoS demo triggered (10 simulated points)."
	RampDemoMessage  = "Ramp attack demo triggered (12 simulated points)."
	predictAltCount  = 3
	localAltCount    = 4
	maxBodyBytes     = 1 << 20
	historyDefault   = 50
	historyMax       = 1000
	historyWriteWait = 2 * time.Second
)

// HistoryStore persists served decisions. Implemented by *cache.RedisCache.
type HistoryStore interface {
	RecordDecision(ctx context.Context, ev models.DecisionEvent) error
	LatestDecisions(ctx context.Context, count int64) ([]models.DecisionEvent, error)
	Decision(ctx context.Context, id string) (models.DecisionEvent, error)
	Counters(ctx context.Context) (total, spikes, ddos int64, byStatus map[string]int64, err error)
}

// EventPublisher ships served decisions. Implemented by
// *communicator.Publisher.
type EventPublisher interface {
	Publish(ev models.DecisionEvent)
}

// Deps are the handler's collaborators. History and Publisher are optional
// and must be left nil (not typed-nil) when disabled.
type Deps struct {
	Engine    *decision.Engine
	Queue     *telemetry.Queue
	Source    *monitor.Source
	Demo      *demo.Runner
	Health    http.Handler
	History   HistoryStore
	Publisher EventPublisher
}

type Handler struct {
	engine    *decision.Engine
	queue     *telemetry.Queue
	source    *monitor.Source
	demo      *demo.Runner
	health    http.Handler
	history   HistoryStore
	publisher EventPublisher
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		engine:    d.Engine,
		queue:     d.Queue,
		source:    d.Source,
		demo:      d.Demo,
		health:    d.Health,
		history:   d.History,
		publisher: d.Publisher,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type receivedResponse struct {
	Message   string `json:"message"`
	QueuedLen int    `json:"queued_len"`
}

type predictInput struct {
	Latency        float64 `json:"latency"`
	Jitter         float64 `json:"jitter"`
	PacketLoss     float64 `json:"packet_loss"`
	Bandwidth      float64 `json:"bandwidth"`
	SignalStrength float64 `json:"signal_strength"`
}

type predictResponse struct {
	TelemetryInput predictInput `json:"telemetry_input"`
	decision.Result
	AlternativeSolutions []string `json:"alternative_solutions"`
}

type localResponse struct {
	CollectedTelemetry telemetry.Collected `json:"collected_telemetry"`
	decision.Result
	AlternativeSolutions []string `json:"alternative_solutions"`
	Timestamp            int64    `json:"timestamp"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type historyResponse struct {
	Count     int                    `json:"count"`
	Decisions []models.DecisionEvent `json:"decisions"`
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, messageResponse{Message: IndexMessage}, http.StatusOK)
}

// TelemetryTest handles GET /telemetry_test: a fixed healthy sample for
// clients checking connectivity and response shape. No side effects.
func (h *Handler) TelemetryTest(w http.ResponseWriter, r *http.Request) {
	now := telemetry.NowMillis()
	resp := localResponse{
		CollectedTelemetry: telemetry.Collected{
			LatencyMeasured: 50.0,
			JitterMeasured:  5.0,
			PacketLoss:      0.1,
			Bandwidth:       50.0,
			SignalStrength:  80,
			Timestamp:       now,
		},
		Result: decision.Result{
			PredictedLatency: 48.23,
			Status:           string(decision.StatusNormal),
			ActionType:       decision.ActionMonitor,
			ActionStrength:   0.3,
			Solution:         "No immediate action — continue monitoring.",
		},
		AlternativeSolutions: h.engine.Selector().Alternatives(decision.ActionMonitor, localAltCount),
		Timestamp:            now,
	}
	respondJSON(w, resp, http.StatusOK)
}

// Predict handles POST /predict. It needs the trained model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RequireModel(); err != nil {
		respondError(w, decision.ModelUnavailableMessage, http.StatusInternalServerError)
		return
	}

	var p telemetry.FeaturePayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec := p.Record(telemetry.NowMillis())
	res, err := h.engine.Decide(r.Context(), rec)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rec.Latency = res.PredictedLatency
	h.recordDecision(r.Context(), models.OriginPredict, rec, res)

	respondJSON(w, predictResponse{
		TelemetryInput: predictInput{
			Latency:        rec.Latency,
			Jitter:         rec.Jitter,
			PacketLoss:     rec.PacketLoss,
			Bandwidth:      rec.Bandwidth,
			SignalStrength: rec.SignalStrength,
		},
		Result:               res,
		AlternativeSolutions: h.engine.Selector().Alternatives(res.ActionType, predictAltCount),
	}, http.StatusOK)
}

// ReceiveTelemetry handles POST /telemetry from the external sender.
func (h *Handler) ReceiveTelemetry(w http.ResponseWriter, r *http.Request) {
	var p telemetry.PushPayload
	if err := decodeBody(w, r, &p); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec := telemetry.FromPush(p, telemetry.NowMillis())
	n := h.queue.Push(rec)
	metrics.TelemetryReceived.WithLabelValues("push").Inc()
	metrics.QueueLength.Set(float64(n))

	zerolog.Ctx(r.Context()).Info().
		Float64("cpu", p.CPU.Or(0)).
		Float64("ram", p.RAM.Or(0)).
		Float64("rtt", rec.Latency).
		Int("queue_len", n).
		Msg("telemetry queued")

	respondJSON(w, receivedResponse{Message: ReceivedMessage, QueuedLen: n}, http.StatusOK)
}

// TelemetryLocal handles GET /telemetry_local: the next queued record, or a
// live measurement when nothing is queued.
func (h *Handler) TelemetryLocal(w http.ResponseWriter, r *http.Request) {
	reading := h.source.Next(r.Context())

	res, err := h.engine.Decide(r.Context(), reading.Record)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.recordDecision(r.Context(), reading.Origin, reading.Record, res)

	zerolog.Ctx(r.Context()).Debug().
		Str("origin", reading.Origin).
		Float64("latency", reading.Record.Latency).
		Float64("predicted_latency", res.PredictedLatency).
		Bool("spike", res.Spike).
		Bool("ddos", res.DDoSSuspected).
		Msg("telemetry served")

	respondJSON(w, localResponse{
		CollectedTelemetry:   reading.Record.Collected(),
		Result:               res,
		AlternativeSolutions: h.engine.Selector().Alternatives(res.ActionType, localAltCount),
		Timestamp:            reading.Record.Timestamp,
	}, http.StatusOK)
}

// TriggerDDoSDemo handles POST /trigger_ddos_demo.
func (h *Handler) TriggerDDoSDemo(w http.ResponseWriter, r *http.Request) {
	task := h.demo.StartBurst()
	zerolog.Ctx(r.Context()).Info().Str("task_id", task.ID).Str("kind", task.Kind).Msg("demo started")
	respondJSON(w, messageResponse{Message: DDoSDemoMessage}, http.StatusOK)
}

// TriggerRampAttack handles POST /trigger_ramp_attack.
func (h *Handler) TriggerRampAttack(w http.ResponseWriter, r *http.Request) {
	task := h.demo.StartRamp()
	zerolog.Ctx(r.Context()).Info().Str("task_id", task.ID).Str("kind", task.Kind).Msg("demo started")
	respondJSON(w, messageResponse{Message: RampDemoMessage}, http.StatusOK)
}

// SuggestMitigation handles POST /suggest_mitigation. Unreadable bodies are
// treated as an empty object.
func (h *Handler) SuggestMitigation(w http.ResponseWriter, r *http.Request) {
	var p telemetry.FeaturePayload
	if err := decodeBody(w, r, &p); err != nil {
		p = telemetry.FeaturePayload{}
	}
	s := decision.SuggestMitigations(p.Jitter.Or(0), p.PacketLoss.Or(0), p.Bandwidth.Or(0), p.SignalStrength.Or(0))
	respondJSON(w, suggestionsResponse{Suggestions: s}, http.StatusOK)
}

// Stats handles GET /stats. Counters read zero when history is disabled.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := models.StatsResponse{
		ByStatus:       map[string]int64{},
		QueueLength:    h.queue.Len(),
		QueueDropped:   h.queue.Dropped(),
		DemoRunning:    h.demo.Running(),
		Mode:           h.engine.Mode(),
		HistoryEnabled: h.history != nil,
	}
	for _, s := range cache.KnownStatuses {
		resp.ByStatus[s] = 0
	}

	if h.history != nil {
		total, spikes, ddos, byStatus, err := h.history.Counters(r.Context())
		if err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.TotalDecisions, resp.Spikes, resp.DDoSSuspected = total, spikes, ddos
		for k, v := range byStatus {
			resp.ByStatus[k] = v
		}
	}
	respondJSON(w, resp, http.StatusOK)
}

// History handles GET /history?count=N.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, "decision history disabled", http.StatusServiceUnavailable)
		return
	}

	count := historyDefault
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > historyMax {
			respondError(w, "count must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		count = n
	}

	decisions, err := h.history.LatestDecisions(r.Context(), int64(count))
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, historyResponse{Count: len(decisions), Decisions: decisions}, http.StatusOK)
}

// HistoryByID handles GET /history/{id}.
func (h *Handler) HistoryByID(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, "decision history disabled", http.StatusServiceUnavailable)
		return
	}

	ev, err := h.history.Decision(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, cache.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case err != nil:
		respondError(w, err.Error(), http.StatusInternalServerError)
	default:
		respondJSON(w, ev, http.StatusOK)
	}
}

// recordDecision hands a served decision to the publisher and the history
// store. Failures are logged and never fail the request.
func (h *Handler) recordDecision(ctx context.Context, origin string, rec telemetry.Record, res decision.Result) {
	if h.publisher == nil && h.history == nil {
		return
	}
	ev := models.NewDecisionEvent(origin, rec, res)

	if h.publisher != nil {
		h.publisher.Publish(ev)
	}
	if h.history != nil {
		wctx, cancel := context.WithTimeout(ctx, historyWriteWait)
		defer cancel()
		if err := h.history.RecordDecision(wctx, ev); err != nil {
			metrics.HistoryWrites.WithLabelValues("error").Inc()
			zerolog.Ctx(ctx).Warn().Err(err).Str("decision_id", ev.ID).Msg("history write failed")
			return
		}
		metrics.HistoryWrites.WithLabelValues("ok").Inc()
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return telemetry.Decode(body, dst)
}

// respondJSON marshals before writing the header so an unencodable value
// (NaN, ±Inf) still produces a JSON error body.
func respondJSON(w http.ResponseWriter, data any, status int) {
	body, err := json.Marshal(data)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
