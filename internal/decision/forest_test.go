package decision

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

// stump splits on one feature: x[feature] <= threshold yields left.
func stump(feature int, threshold, left, right float64) Tree {
	return Tree{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		Value:         []float64{0, left, right},
	}
}

// testModels predicts from packet loss (feature 1): <= 5% is calm, above is
// an attack.
func testModels() *ModelSet {
	return &ModelSet{
		Latency:  &Forest{Trees: []Tree{stump(1, 5, 40, 900), stump(1, 5, 60, 700)}},
		Status:   &Forest{Trees: []Tree{stump(1, 5, 1, 0), stump(1, 5, 1, 0), stump(0, 1000, 2, 2)}},
		Action:   &Forest{Trees: []Tree{stump(1, 5, 0, 1)}},
		Strength: &Forest{Trees: []Tree{stump(1, 5, 0.2, 0.9)}},
	}
}

func testEncoders() *Encoders {
	return &Encoders{
		Status: LabelEncoder{"Critical", "Normal", "Degraded"},
		Action: LabelEncoder{ActionMonitor, ActionRateLimit},
	}
}

func TestForest_Regress(t *testing.T) {
	f := testModels().Latency
	v, err := f.Regress([]float64{0, 1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	v, err = f.Regress([]float64{0, 10, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 800.0, v)
}

func TestForest_ClassifyMajorityAndTies(t *testing.T) {
	f := testModels().Status
	code, err := f.Classify([]float64{0, 1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	tie := &Forest{Trees: []Tree{stump(0, 0, 3, 3), stump(0, 0, 2, 2)}}
	code, err = tie.Classify([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	bad := &Forest{Trees: []Tree{stump(0, 0, 1.5, 1.5)}}
	_, err = bad.Classify([]float64{0})
	assert.Error(t, err)
}

func TestForest_FeatureOutOfRange(t *testing.T) {
	f := &Forest{Trees: []Tree{stump(7, 0, 1, 1)}}
	_, err := f.Regress([]float64{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestTree_Validate(t *testing.T) {
	good := stump(0, 1, 1, 2)
	assert.NoError(t, good.validate())

	cyclic := stump(0, 1, 1, 2)
	cyclic.ChildrenLeft[0] = 0
	assert.Error(t, cyclic.validate())

	short := stump(0, 1, 1, 2)
	short.Value = short.Value[:2]
	assert.Error(t, short.validate())

	assert.Error(t, (&Tree{}).validate())
}

func TestModelPredictor_WithEncoders(t *testing.T) {
	p := NewModelPredictor(&Artifacts{Models: testModels(), Encoders: testEncoders()})
	assert.Equal(t, ModeModel, p.Mode())

	calm, err := p.Predict(context.Background(), telemetry.Record{Jitter: 2, PacketLoss: 1, Bandwidth: 40, SignalStrength: 70})
	require.NoError(t, err)
	assert.Equal(t, 50.0, calm.Latency)
	assert.Equal(t, "Normal", calm.Status)
	assert.Equal(t, ActionMonitor, calm.Action)
	assert.Equal(t, 0.2, calm.Strength)

	attack, err := p.Predict(context.Background(), telemetry.Record{Jitter: 300, PacketLoss: 20, Bandwidth: 0.5, SignalStrength: 40})
	require.NoError(t, err)
	assert.Equal(t, 800.0, attack.Latency)
	assert.Equal(t, "Critical", attack.Status)
	assert.Equal(t, ActionRateLimit, attack.Action)
	assert.Equal(t, 0.9, attack.Strength)
}

func TestModelPredictor_WithoutEncoders(t *testing.T) {
	p := NewModelPredictor(&Artifacts{Models: testModels()})

	pred, err := p.Predict(context.Background(), telemetry.Record{Jitter: 2, PacketLoss: 1, Bandwidth: 40})
	require.NoError(t, err)
	// status derived from the predicted latency of 50
	assert.Equal(t, string(StatusNormal), pred.Status)
	assert.Equal(t, ActionDefault, pred.Action)
}

func TestModelPredictor_EncoderOutOfRange(t *testing.T) {
	enc := &Encoders{Status: LabelEncoder{"only"}}
	p := NewModelPredictor(&Artifacts{Models: testModels(), Encoders: enc})

	_, err := p.Predict(context.Background(), telemetry.Record{PacketLoss: 1})
	assert.Error(t, err)
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "multi_task_model.json"), testModels())
	writeJSON(t, filepath.Join(dir, "label_encoders.json"), testEncoders())

	a, err := LoadArtifacts(dir, "multi_task_model.json", "label_encoders.json")
	require.NoError(t, err)
	require.NotNil(t, a.Encoders)
	assert.Equal(t, LabelEncoder{ActionMonitor, ActionRateLimit}, a.Encoders.Action)

	e := NewEngineFromArtifacts(a)
	assert.True(t, e.ModelLoaded())
	res, err := e.Decide(context.Background(), telemetry.Record{Jitter: 300, PacketLoss: 20, Bandwidth: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Critical", res.Status)
	assert.True(t, res.DDoSSuspected)
}

func TestLoadArtifacts_EncodersOptional(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "m.json"), testModels())

	a, err := LoadArtifacts(dir, "m.json", "missing.json")
	require.NoError(t, err)
	assert.Nil(t, a.Encoders)
}

func TestLoadArtifacts_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadArtifacts(dir, "absent.json", "enc.json")
	assert.Error(t, err)

	partial := testModels()
	partial.Strength = nil
	writeJSON(t, filepath.Join(dir, "partial.json"), partial)
	_, err = LoadArtifacts(dir, "partial.json", "enc.json")
	assert.ErrorContains(t, err, "strength")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0o600))
	_, err = LoadArtifacts(dir, "garbage.json", "enc.json")
	assert.Error(t, err)
}
