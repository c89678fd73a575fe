package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// node is one split or leaf of a decision tree. A node with Left < 0 is a
// leaf; its Value holds the regression output or per-class scores.
type node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// ensemble is a random forest exported as JSON
type ensemble struct {
	Trees []tree `json:"trees"`
}

// metadata is the training summary written next to each model
type metadata struct {
	Metrics      map[string]float64 `json:"metrics"`
	TrainingDate *string            `json:"training_date"`
}

var errMalformedTree = errors.New("malformed tree")

// eval walks one tree. Samples equal to the threshold go left.
func (t tree) eval(x []float64) ([]float64, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return nil, errMalformedTree
		}
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(x) {
			return nil, fmt.Errorf("%w: feature %d out of range", errMalformedTree, n.Feature)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nil, fmt.Errorf("%w: cycle detected", errMalformedTree)
}

// predict averages the leaf values of every tree
func (e *ensemble) predict(x []float64) ([]float64, error) {
	var sum []float64
	for _, t := range e.Trees {
		v, err := t.eval(x)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			return nil, fmt.Errorf("%w: inconsistent leaf width", errMalformedTree)
		}
		for i := range v {
			sum[i] += v[i]
		}
	}
	if sum == nil {
		return nil, fmt.Errorf("%w: empty ensemble", errMalformedTree)
	}
	for i := range sum {
		sum[i] /= float64(len(e.Trees))
	}
	return sum, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadModel reads a model and its optional metadata. A missing model file
// returns (nil, nil, nil).
func loadModel(modelPath, metaPath string) (*ensemble, *metadata, error) {
	var e ensemble
	if err := readJSON(modelPath, &e); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if len(e.Trees) == 0 {
		return nil, nil, fmt.Errorf("%s: %w: empty ensemble", modelPath, errMalformedTree)
	}

	var meta metadata
	if err := readJSON(metaPath, &meta); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}
	return &e, &meta, nil
}
