// Package anomaly flags individual score submissions as statistical
// outliers. A trained isolation-forest artifact is used when one is
// configured and loads cleanly; otherwise, and whenever the model path
// fails at runtime, deterministic rule checks take over. Detection
// never blocks a score submission: the top-level Detector recovers
// every failure into a safe default.
package anomaly

import (
	"fmt"

	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

// Strategy is one way of assessing a score vector. The vector maps
// criterion names (plus total_score) to values.
type Strategy interface {
	Detect(scores map[string]float64) (domain.AnomalyAssessment, error)
	Method() string
}

// Detector runs a primary strategy with a rule-based fallback. The
// strategy is chosen once at construction, not re-checked per call,
// and the loaded model artifact is immutable, so a single Detector is
// safe for concurrent use.
type Detector struct {
	primary  Strategy
	fallback Strategy
	logger   zerolog.Logger
}

// New builds a Detector. With an empty artifact path, or one that fails
// to load, the rule strategy serves alone.
func New(artifactPath string, logger zerolog.Logger) *Detector {
	rules := NewRuleDetector()

	if artifactPath == "" {
		logger.Info().Msg("no anomaly model configured, using rule-based detection")
		return &Detector{primary: rules, fallback: rules, logger: logger}
	}

	model, err := LoadModelDetector(artifactPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", artifactPath).
			Msg("failed to load anomaly model, falling back to rule-based detection")
		return &Detector{primary: rules, fallback: rules, logger: logger}
	}

	logger.Info().Str("path", artifactPath).Int("trees", len(model.artifact.Trees)).
		Msg("anomaly model loaded")
	return &Detector{primary: model, fallback: rules, logger: logger}
}

// Detect assesses one score vector. It never returns an error: a
// failing or panicking model path is retried against the rules, and a
// total failure yields a non-anomalous assessment with method "error".
func (d *Detector) Detect(scores map[string]float64) domain.AnomalyAssessment {
	assessment, err := runStrategy(d.primary, scores)
	if err == nil {
		return assessment
	}
	d.logger.Warn().Err(err).Str("method", d.primary.Method()).
		Msg("primary anomaly strategy failed, retrying with rules")

	assessment, err = runStrategy(d.fallback, scores)
	if err == nil {
		return assessment
	}
	d.logger.Error().Err(err).Msg("rule-based anomaly detection failed")
	return errorAssessment(scores, err)
}

// runStrategy converts a panic inside a strategy into an error, so a
// corrupt model artifact degrades like any other strategy failure.
func runStrategy(s Strategy, scores map[string]float64) (assessment domain.AnomalyAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s strategy panicked: %v", s.Method(), r)
		}
	}()
	return s.Detect(scores)
}

func errorAssessment(scores map[string]float64, err error) domain.AnomalyAssessment {
	return domain.AnomalyAssessment{
		IsAnomaly:  false,
		Confidence: 0,
		Severity:   domain.SeverityNone,
		Method:     "error",
		Features:   scores,
		Error:      err.Error(),
	}
}
