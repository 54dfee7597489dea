package anomaly

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testArtifact is a one-tree forest over standardized features: values
// beyond two standard deviations on technical_skill isolate at depth 2,
// everything else lands in a large leaf.
func testArtifact() *Artifact {
	return &Artifact{
		Features: []string{"technical_skill", "artistic_expression", "stage_presence", "overall_impression", domain.TotalScoreKey},
		Means:    []float64{20, 20, 20, 20, 80},
		Stddevs:  []float64{5, 5, 5, 5, 10},
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: -2, Left: 1, Right: 2},
			{Left: -1, Right: -1, Size: 1},
			{Feature: 0, Threshold: 2, Left: 3, Right: 4},
			{Left: -1, Right: -1, Size: 200},
			{Left: -1, Right: -1, Size: 1},
		}}},
		SampleSize:  256,
		Threshold:   0.6,
		Calibration: Calibration{Low: 0.4, High: 0.8},
	}
}

func TestModelDetectorNormalVector(t *testing.T) {
	d, err := NewModelDetector(testArtifact())
	require.NoError(t, err)

	a, err := d.Detect(vector(20, 19, 21, 20))
	require.NoError(t, err)
	assert.False(t, a.IsAnomaly)
	assert.Equal(t, "isolation_forest", a.Method)
	assert.Less(t, a.Confidence, 0.5)
}

func TestModelDetectorIsolatedVector(t *testing.T) {
	d, err := NewModelDetector(testArtifact())
	require.NoError(t, err)

	a, err := d.Detect(vector(45, 19, 21, 20))
	require.NoError(t, err)
	assert.True(t, a.IsAnomaly)
	assert.Equal(t, 1.0, a.Confidence)
	assert.Equal(t, domain.SeverityHigh, a.Severity)
}

func TestModelDetectorUsesTrainingStatistics(t *testing.T) {
	artifact := testArtifact()
	d, err := NewModelDetector(artifact)
	require.NoError(t, err)

	// (10-20)/5 = -2 sits exactly on the left split boundary and goes
	// right; (9.9-20)/5 < -2 isolates. The boundary only moves if the
	// standardization were re-fit, so this pins the training-time stats.
	onBoundary, err := d.Detect(vector(10, 20, 20, 20))
	require.NoError(t, err)
	isolated, err := d.Detect(vector(9, 20, 20, 20))
	require.NoError(t, err)
	assert.False(t, onBoundary.IsAnomaly)
	assert.True(t, isolated.IsAnomaly)
}

func TestModelDetectorMissingFeature(t *testing.T) {
	d, err := NewModelDetector(testArtifact())
	require.NoError(t, err)

	_, err = d.Detect(map[string]float64{"technical_skill": 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing feature")
}

func TestNewModelDetectorRejectsBadArtifacts(t *testing.T) {
	artifact := testArtifact()
	artifact.Means = artifact.Means[:2]
	_, err := NewModelDetector(artifact)
	require.Error(t, err)

	artifact = testArtifact()
	artifact.Trees = nil
	_, err = NewModelDetector(artifact)
	require.Error(t, err)

	artifact = testArtifact()
	artifact.Calibration = Calibration{Low: 0.5, High: 0.5}
	_, err = NewModelDetector(artifact)
	require.Error(t, err)
}

func TestLoadModelDetector(t *testing.T) {
	raw, err := json.Marshal(testArtifact())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	d, err := LoadModelDetector(path)
	require.NoError(t, err)

	a, err := d.Detect(vector(45, 19, 21, 20))
	require.NoError(t, err)
	assert.True(t, a.IsAnomaly)
}

func TestDetectorFallsBackToRulesWithoutModel(t *testing.T) {
	d := New("", zerolog.Nop())

	a := d.Detect(vector(25, 25, 25, 25))
	assert.True(t, a.IsAnomaly)
	assert.Equal(t, "rules", a.Method)
}

func TestDetectorFallsBackWhenModelPathUnreadable(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())

	a := d.Detect(vector(20, 19, 21, 20))
	assert.Equal(t, "rules", a.Method)
	assert.False(t, a.IsAnomaly)
}

type failingStrategy struct{}

func (failingStrategy) Detect(map[string]float64) (domain.AnomalyAssessment, error) {
	return domain.AnomalyAssessment{}, errors.New("inference backend unavailable")
}
func (failingStrategy) Method() string { return "failing" }

type panickingStrategy struct{}

func (panickingStrategy) Detect(map[string]float64) (domain.AnomalyAssessment, error) {
	panic("corrupt tree")
}
func (panickingStrategy) Method() string { return "panicking" }

func TestDetectorRetriesRulesOnModelError(t *testing.T) {
	d := &Detector{primary: failingStrategy{}, fallback: NewRuleDetector(), logger: zerolog.Nop()}

	a := d.Detect(vector(25, 25, 25, 25))
	assert.True(t, a.IsAnomaly)
	assert.Equal(t, "rules", a.Method)
}

func TestDetectorRetriesRulesWhenModelPanics(t *testing.T) {
	d := &Detector{primary: panickingStrategy{}, fallback: NewRuleDetector(), logger: zerolog.Nop()}

	a := d.Detect(vector(25, 25, 25, 25))
	assert.True(t, a.IsAnomaly)
	assert.Equal(t, "rules", a.Method)
}

func TestDetectorNeverPanics(t *testing.T) {
	d := &Detector{primary: panickingStrategy{}, fallback: panickingStrategy{}, logger: zerolog.Nop()}

	a := d.Detect(vector(25, 25, 25, 25))
	assert.False(t, a.IsAnomaly)
	assert.Zero(t, a.Confidence)
	assert.Equal(t, "error", a.Method)
	assert.NotEmpty(t, a.Error)
}
