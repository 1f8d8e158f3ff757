package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilal/switchify-netai/internal/cache"
	"github.com/bilal/switchify-netai/internal/decision"
	"github.com/bilal/switchify-netai/internal/demo"
	"github.com/bilal/switchify-netai/internal/health"
	"github.com/bilal/switchify-netai/internal/models"
	"github.com/bilal/switchify-netai/internal/monitor"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

type stubModel struct{}

func (stubModel) Mode() string { return decision.ModeModel }

func (stubModel) Predict(_ context.Context, r telemetry.Record) (decision.Prediction, error) {
	return decision.Prediction{Latency: 42, Status: "Degraded", Action: decision.ActionRateLimit, Strength: 0.7}, nil
}

type fakeLive struct {
	mu    sync.Mutex
	calls int
	rec   telemetry.Record
}

func (f *fakeLive) Measure(context.Context) telemetry.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rec
}

type memHistory struct {
	mu     sync.Mutex
	events []models.DecisionEvent
}

func (m *memHistory) RecordDecision(_ context.Context, ev models.DecisionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]models.DecisionEvent{ev}, m.events...)
	return nil
}

func (m *memHistory) LatestDecisions(_ context.Context, count int64) ([]models.DecisionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(count) > len(m.events) {
		count = int64(len(m.events))
	}
	return append([]models.DecisionEvent(nil), m.events[:count]...), nil
}

func (m *memHistory) Decision(_ context.Context, id string) (models.DecisionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.DecisionEvent{}, cache.ErrNotFound
}

func (m *memHistory) Counters(context.Context) (int64, int64, int64, map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStatus := map[string]int64{}
	var spikes, ddos int64
	for _, ev := range m.events {
		byStatus[ev.Status]++
		if ev.Spike {
			spikes++
		}
		if ev.DDoSSuspected {
			ddos++
		}
	}
	return int64(len(m.events)), spikes, ddos, byStatus, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []models.DecisionEvent
}

func (m *memPublisher) Publish(ev models.DecisionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

type fixture struct {
	router    http.Handler
	queue     *telemetry.Queue
	live      *fakeLive
	runner    *demo.Runner
	history   *memHistory
	publisher *memPublisher
}

func newFixture(t *testing.T, p decision.Predictor, withHistory bool) *fixture {
	t.Helper()
	f := &fixture{
		queue:     telemetry.NewQueue(0),
		live:      &fakeLive{rec: telemetry.Record{Latency: 30, Jitter: 2, Bandwidth: 80, SignalStrength: 90}},
		publisher: &memPublisher{},
	}
	f.runner = demo.NewRunner(f.queue, time.Millisecond, 1)

	engine := decision.NewEngine(p, decision.NewSelector())
	state := health.New(engine.Mode(), nil)
	state.SetRunning(true)

	deps := Deps{
		Engine:    engine,
		Queue:     f.queue,
		Source:    monitor.NewSource(f.queue, f.live),
		Demo:      f.runner,
		Health:    state,
		Publisher: f.publisher,
	}
	if withHistory {
		f.history = &memHistory{}
		deps.History = f.history
	}
	f.router = NewRouter(NewHandler(deps), nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIndex(t *testing.T) {
	f := newFixture(t, nil, false)
	rec := f.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Latency AI backend running. Use /telemetry_local and /predict."}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTelemetryTest_CannedAndSideEffectFree(t *testing.T) {
	f := newFixture(t, nil, true)
	f.queue.Push(telemetry.Record{Latency: 1})

	rec := f.do(t, http.MethodGet, "/telemetry_test", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, "Normal", body["status"])
	assert.Equal(t, "monitor", body["action_type"])
	assert.Equal(t, 48.23, body["predicted_latency"])
	assert.Equal(t, false, body["spike"])
	assert.Equal(t, false, body["ddos_suspected"])
	assert.Equal(t, "No immediate action — continue monitoring.", body["solution"])
	assert.Len(t, body["alternative_solutions"], len(decision.Templates[decision.ActionMonitor]))

	collected := body["collected_telemetry"].(map[string]any)
	assert.Equal(t, 50.0, collected["latency_measured"])
	assert.Equal(t, collected["timestamp"], body["timestamp"])

	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.history.events)
}

func TestPredict_WithoutModel(t *testing.T) {
	f := newFixture(t, decision.HeuristicPredictor{}, false)
	rec := f.do(t, http.MethodPost, "/predict", `{"jitter":5}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Model not loaded on server"}`, rec.Body.String())
}

func TestPredict_WithModel(t *testing.T) {
	f := newFixture(t, stubModel{}, true)
	rec := f.do(t, http.MethodPost, "/predict", `{"jitter":"3.5","packet_loss":1,"bandwidth":null}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	input := body["telemetry_input"].(map[string]any)
	assert.Equal(t, 42.0, input["latency"])
	assert.Equal(t, 3.5, input["jitter"])
	assert.Equal(t, 1.0, input["packet_loss"])
	assert.Equal(t, 0.0, input["bandwidth"])
	assert.Equal(t, 0.0, input["signal_strength"])

	assert.Equal(t, "Degraded", body["status"])
	assert.Equal(t, "rate_limit", body["action_type"])
	assert.Equal(t, 0.7, body["action_strength"])
	assert.Len(t, body["alternative_solutions"], 3)
	assert.Contains(t, decision.Templates[decision.ActionRateLimit], body["solution"])
	assert.NotContains(t, body, "id")

	require.Len(t, f.history.events, 1)
	assert.Equal(t, models.OriginPredict, f.history.events[0].Origin)
	require.Len(t, f.publisher.events, 1)
}

func TestPredict_MalformedBody(t *testing.T) {
	f := newFixture(t, stubModel{}, false)

	rec := f.do(t, http.MethodPost, "/predict", `{"jitter":`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["error"], "decode payload")

	rec = f.do(t, http.MethodPost, "/predict", `{"jitter":"fast"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPredict_EmptyBodyUsesDefaults(t *testing.T) {
	f := newFixture(t, stubModel{}, false)
	rec := f.do(t, http.MethodPost, "/predict", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReceiveTelemetry_QueuesAndServesFirst(t *testing.T) {
	f := newFixture(t, nil, true)

	rec := f.do(t, http.MethodPost, "/telemetry", `{"cpu":12,"ram":40,"jitter":4,"packet_loss":-1,"rtt":"123.4567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Telemetry received","queued_len":1}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/telemetry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decodeMap(t, rec)["queued_len"])

	rec = f.do(t, http.MethodGet, "/telemetry_local", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	collected := body["collected_telemetry"].(map[string]any)
	assert.Equal(t, 123.457, collected["latency_measured"])
	assert.Equal(t, 0.0, collected["packet_loss"])
	assert.Equal(t, telemetry.PushedBandwidth, collected["bandwidth"])
	assert.Equal(t, telemetry.PushedSignal, collected["signal_strength"])
	assert.Equal(t, 123.457, body["predicted_latency"])
	assert.Equal(t, "Degraded", body["status"])
	assert.Equal(t, "default", body["action_type"])
	assert.Equal(t, decision.DefaultStrength, body["action_strength"])
	assert.Len(t, body["alternative_solutions"], 1)

	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, 0, f.live.calls)
	require.Len(t, f.history.events, 1)
	assert.Equal(t, monitor.OriginQueue, f.history.events[0].Origin)
}

func TestReceiveTelemetry_Malformed(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodPost, "/telemetry", `{"rtt":{"nested":true}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeMap(t, rec), "error")
	assert.Equal(t, 0, f.queue.Len())
}

func TestReceiveTelemetry_RejectsNonFinite(t *testing.T) {
	f := newFixture(t, nil, false)

	for _, payload := range []string{`{"rtt":"NaN","jitter":"Infinity"}`, `{"packet_loss":"Inf"}`, `{"rtt":"-Infinity"}`} {
		rec := f.do(t, http.MethodPost, "/telemetry", payload)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, payload)
		assert.Contains(t, decodeMap(t, rec)["error"], "non-finite", payload)
	}
	assert.Equal(t, 0, f.queue.Len())

	// nothing was queued, so the next read is a clean live measurement
	rec := f.do(t, http.MethodGet, "/telemetry_local", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30.0, decodeMap(t, rec)["predicted_latency"])
	assert.Equal(t, 1, f.live.calls)
}

func TestPredict_RejectsNonFinite(t *testing.T) {
	f := newFixture(t, stubModel{}, false)

	for _, payload := range []string{`{"jitter":"Inf"}`, `{"bandwidth":"NaN"}`} {
		rec := f.do(t, http.MethodPost, "/predict", payload)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, payload)
		assert.Contains(t, decodeMap(t, rec)["error"], "non-finite", payload)
	}
}

func TestRespondJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, map[string]float64{"latency": math.NaN()}, http.StatusOK)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decodeMap(t, rec)["error"], "encode response")
}

func TestTelemetryLocal_LiveWhenQueueEmpty(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodGet, "/telemetry_local", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, 1, f.live.calls)
	assert.Equal(t, "Normal", body["status"])
	assert.Equal(t, 30.0, body["predicted_latency"])
	assert.Equal(t, false, body["spike"])
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, monitor.OriginLive, f.publisher.events[0].Origin)
}

func TestTriggerDDoSDemo(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodPost, "/trigger_ddos_demo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"DDoS demo triggered (10 simulated points)."}`, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Wait(ctx))
	require.Equal(t, demo.BurstPoints, f.queue.Len())

	for i := 0; i < demo.BurstPoints; i++ {
		body := decodeMap(t, f.do(t, http.MethodGet, "/telemetry_local", ""))
		assert.Equal(t, "Critical", body["status"])
		assert.Equal(t, true, body["spike"])
		assert.Equal(t, true, body["ddos_suspected"])
	}
	assert.Equal(t, 0, f.live.calls)
}

func TestTriggerRampAttack(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodPost, "/trigger_ramp_attack", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Ramp attack demo triggered (12 simulated points)."}`, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.runner.Wait(ctx))
	assert.Equal(t, demo.RampPoints, f.queue.Len())
}

func TestSuggestMitigation(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodPost, "/suggest_mitigation", `{"jitter":25,"packet_loss":6,"bandwidth":4,"signal_strength":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body suggestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Suggestions, 4)

	for _, payload := range []string{"", "not json", `{"jitter":[1]}`} {
		rec = f.do(t, http.MethodPost, "/suggest_mitigation", payload)
		require.Equal(t, http.StatusOK, rec.Code, payload)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		// an empty object has zero bandwidth, which is below the 5 Mbps rule
		assert.Equal(t, []string{"Reduce background transfers and lower streaming quality."}, body.Suggestions, payload)
	}

	rec = f.do(t, http.MethodPost, "/suggest_mitigation", `{"bandwidth":50}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{decision.NoUrgentAction}, body.Suggestions)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, nil, true)
	for i := 0; i < 3; i++ {
		f.do(t, http.MethodGet, "/telemetry_local", "")
	}

	rec := f.do(t, http.MethodGet, "/history?count=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = f.do(t, http.MethodGet, "/history/"+body.Decisions[0].ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/history/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, bad := range []string{"0", "1001", "abc"} {
		rec = f.do(t, http.MethodGet, "/history?count="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestHistory_Disabled(t *testing.T) {
	f := newFixture(t, nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/history", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/history/x", "").Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil, false)
	f.queue.Push(telemetry.Record{})

	var stats models.StatsResponse
	rec := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.QueueLength)
	assert.Equal(t, int64(0), stats.TotalDecisions)
	assert.False(t, stats.HistoryEnabled)
	assert.Equal(t, decision.ModeHeuristic, stats.Mode)
	assert.Len(t, stats.ByStatus, len(cache.KnownStatuses))

	f = newFixture(t, nil, true)
	f.do(t, http.MethodGet, "/telemetry_local", "")
	rec = f.do(t, http.MethodGet, "/stats", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalDecisions)
	assert.Equal(t, int64(1), stats.ByStatus["Normal"])
	assert.True(t, stats.HistoryEnabled)
}

func TestHealthAndPrometheus(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeMap(t, rec)["status"])

	f.do(t, http.MethodGet, "/", "")
	rec = f.do(t, http.MethodGet, "/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "switchify_requests_total")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil, false)
	rec := f.do(t, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeMap(t, rec), "error")
}

func TestRouter_CORS(t *testing.T) {
	f := newFixture(t, nil, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}
