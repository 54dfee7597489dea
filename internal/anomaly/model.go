package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"festival-scoring/internal/domain"
)

// Artifact is a trained isolation forest exported offline. Features
// lists the input order; Means/Stddevs are the training-time
// standardization statistics and must be reused at inference, never
// re-fit per call. Threshold is the anomaly-score cutoff for the
// binary prediction, and Calibration maps the raw score onto a [0,1]
// confidence via an affine transform.
type Artifact struct {
	Features    []string    `json:"features"`
	Means       []float64   `json:"means"`
	Stddevs     []float64   `json:"stddevs"`
	Trees       []Tree      `json:"trees"`
	SampleSize  int         `json:"sample_size"`
	Threshold   float64     `json:"threshold"`
	Calibration Calibration `json:"calibration"`
}

type Calibration struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Tree is a flat array of nodes; index 0 is the root. A node with
// Left < 0 is a leaf covering Size training samples.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

var _ Strategy = (*ModelDetector)(nil)

// ModelDetector scores vectors against a loaded Artifact. The artifact
// is read-only after load and shareable across goroutines.
type ModelDetector struct {
	artifact *Artifact
}

func LoadModelDetector(path string) (*ModelDetector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	return NewModelDetector(&artifact)
}

func NewModelDetector(artifact *Artifact) (*ModelDetector, error) {
	if len(artifact.Features) == 0 {
		return nil, fmt.Errorf("model artifact declares no features")
	}
	if len(artifact.Means) != len(artifact.Features) || len(artifact.Stddevs) != len(artifact.Features) {
		return nil, fmt.Errorf("standardization statistics do not match feature count")
	}
	if len(artifact.Trees) == 0 {
		return nil, fmt.Errorf("model artifact contains no trees")
	}
	if artifact.SampleSize < 2 {
		return nil, fmt.Errorf("model artifact sample size %d is invalid", artifact.SampleSize)
	}
	if artifact.Calibration.High <= artifact.Calibration.Low {
		return nil, fmt.Errorf("model calibration range is empty")
	}
	return &ModelDetector{artifact: artifact}, nil
}

func (d *ModelDetector) Method() string { return "isolation_forest" }

func (d *ModelDetector) Detect(scores map[string]float64) (domain.AnomalyAssessment, error) {
	features, err := d.standardize(scores)
	if err != nil {
		return domain.AnomalyAssessment{}, err
	}

	var pathSum float64
	for i := range d.artifact.Trees {
		depth, err := pathLength(&d.artifact.Trees[i], features)
		if err != nil {
			return domain.AnomalyAssessment{}, err
		}
		pathSum += depth
	}
	avgPath := pathSum / float64(len(d.artifact.Trees))

	// Standard isolation-forest anomaly score: s = 2^(-E[h(x)]/c(n)).
	score := math.Pow(2, -avgPath/averagePathLength(d.artifact.SampleSize))

	cal := d.artifact.Calibration
	confidence := clamp((score-cal.Low)/(cal.High-cal.Low), 0, 1)

	return domain.AnomalyAssessment{
		IsAnomaly:  score >= d.artifact.Threshold,
		Confidence: confidence,
		Severity:   domain.SeverityFor(confidence),
		Method:     d.Method(),
		Features:   scores,
	}, nil
}

// standardize orders the vector per the artifact's feature list and
// applies the training-time zero-mean unit-variance transform.
func (d *ModelDetector) standardize(scores map[string]float64) ([]float64, error) {
	features := make([]float64, len(d.artifact.Features))
	for i, name := range d.artifact.Features {
		v, ok := scores[name]
		if !ok {
			return nil, fmt.Errorf("score vector is missing feature %q", name)
		}
		std := d.artifact.Stddevs[i]
		if std == 0 {
			std = 1
		}
		features[i] = (v - d.artifact.Means[i]) / std
	}
	return features, nil
}

func pathLength(tree *Tree, features []float64) (float64, error) {
	depth := 0.0
	idx := 0
	for {
		if idx < 0 || idx >= len(tree.Nodes) {
			return 0, fmt.Errorf("malformed tree: node index %d out of range", idx)
		}
		node := tree.Nodes[idx]
		if node.Left < 0 {
			return depth + averagePathLength(node.Size), nil
		}
		if node.Feature < 0 || node.Feature >= len(features) {
			return 0, fmt.Errorf("malformed tree: feature index %d out of range", node.Feature)
		}
		if features[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the expected path length of an
// unsuccessful BST search over n samples.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
