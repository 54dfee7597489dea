package anomaly

import (
	"math"

	"festival-scoring/internal/domain"
)

const (
	findingOutOfRange      = "out_of_range"
	findingZeroScore       = "zero_score"
	findingAllPerfect      = "all_perfect_scores"
	findingUniformScores   = "uniform_scores"
	confidenceDenominator  = 3.0
	floatEqualityTolerance = 1e-9
)

var _ Strategy = (*RuleDetector)(nil)

// RuleDetector applies deterministic heuristics against the rubric:
// values outside [0, max], exact zeros, all criteria at their maximum,
// and all criteria mutually equal. Confidence grows with the number of
// findings, capped at 1.
type RuleDetector struct{}

func NewRuleDetector() *RuleDetector { return &RuleDetector{} }

func (d *RuleDetector) Method() string { return "rules" }

func (d *RuleDetector) Detect(scores map[string]float64) (domain.AnomalyAssessment, error) {
	var findings []string

	for _, c := range domain.Criteria {
		v := scores[c.Name]
		if v < 0 || v > c.Max {
			findings = append(findings, findingOutOfRange)
			break
		}
	}

	for _, c := range domain.Criteria {
		if scores[c.Name] == 0 {
			findings = append(findings, findingZeroScore)
			break
		}
	}

	allPerfect := true
	for _, c := range domain.Criteria {
		if !floatEqual(scores[c.Name], c.Max) {
			allPerfect = false
			break
		}
	}
	if allPerfect {
		findings = append(findings, findingAllPerfect)
	}

	first := scores[domain.Criteria[0].Name]
	uniform := first > 0
	for _, c := range domain.Criteria[1:] {
		if !floatEqual(scores[c.Name], first) {
			uniform = false
			break
		}
	}
	if uniform {
		findings = append(findings, findingUniformScores)
	}

	confidence := math.Min(float64(len(findings))/confidenceDenominator, 1.0)
	return domain.AnomalyAssessment{
		IsAnomaly:  len(findings) > 0,
		Confidence: confidence,
		Severity:   domain.SeverityFor(confidence),
		Method:     d.Method(),
		Findings:   findings,
		Features:   scores,
	}, nil
}

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < floatEqualityTolerance
}
