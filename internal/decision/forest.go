package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const leafNode = -1

// Tree is one fitted decision tree in flattened sklearn layout. value holds
// the regression output, or the majority class code for classifiers.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

func (t *Tree) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("inconsistent node arrays (%d nodes)", n)
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafNode && r == leafNode {
			continue
		}
		// children always follow their parent, which also rules out cycles
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) (float64, error) {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		f := t.Feature[node]
		if f < 0 || f >= len(x) {
			return 0, fmt.Errorf("node %d references feature %d, have %d", node, f, len(x))
		}
		if x[f] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node], nil
}

// Forest is an ensemble of trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Regress averages the leaf values of every tree.
func (f *Forest) Regress(x []float64) (float64, error) {
	sum := 0.0
	for i := range f.Trees {
		v, err := f.Trees[i].leaf(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

// Classify returns the majority class code. Ties go to the lowest code.
func (f *Forest) Classify(x []float64) (int, error) {
	votes := make(map[int]int)
	for i := range f.Trees {
		v, err := f.Trees[i].leaf(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("tree %d: leaf value %v is not a class code", i, v)
		}
		votes[int(v)]++
	}
	best, bestVotes := 0, -1
	for code, n := range votes {
		if n > bestVotes || (n == bestVotes && code < best) {
			best, bestVotes = code, n
		}
	}
	return best, nil
}

// ModelSet holds the four fitted predictors.
type ModelSet struct {
	Latency  *Forest `json:"latency"`
	Status   *Forest `json:"status"`
	Action   *Forest `json:"action"`
	Strength *Forest `json:"strength"`
}

func (m *ModelSet) validate() error {
	parts := []struct {
		name string
		f    *Forest
	}{
		{"latency", m.Latency},
		{"status", m.Status},
		{"action", m.Action},
		{"strength", m.Strength},
	}
	for _, p := range parts {
		if p.f == nil {
			return fmt.Errorf("model %q missing", p.name)
		}
		if err := p.f.validate(); err != nil {
			return fmt.Errorf("model %q: %w", p.name, err)
		}
	}
	return nil
}

// LabelEncoder maps class codes back to their labels.
type LabelEncoder []string

func (e LabelEncoder) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e) {
		return "", fmt.Errorf("class code %d outside encoder range [0,%d)", code, len(e))
	}
	return e[code], nil
}

// Encoders are optional; a nil encoder means labels must be derived.
type Encoders struct {
	Status LabelEncoder `json:"status"`
	Action LabelEncoder `json:"action"`
}

// Artifacts is everything loaded from the model directory.
type Artifacts struct {
	Models   *ModelSet
	Encoders *Encoders
}

// LoadArtifacts reads the model set and, if present, the label encoders.
// A missing or invalid model file is an error; a missing encoder file is not.
func LoadArtifacts(dir, modelFile, encodersFile string) (*Artifacts, error) {
	var models ModelSet
	if err := readJSON(filepath.Join(dir, modelFile), &models); err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	if err := models.validate(); err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}

	a := &Artifacts{Models: &models}

	var enc Encoders
	err := readJSON(filepath.Join(dir, encodersFile), &enc)
	switch {
	case err == nil:
		a.Encoders = &enc
	case errors.Is(err, os.ErrNotExist):
		// labels fall back to heuristics
	default:
		return nil, fmt.Errorf("load encoders: %w", err)
	}
	return a, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
