package domain

import (
	"time"
)

type EventPhase string

const (
	PhaseScoringOpen      EventPhase = "scoring_open"
	PhaseResultsPublished EventPhase = "results_published"
)

type Event struct {
	ID        string
	Name      string
	Phase     EventPhase
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Participant struct {
	ID          string
	EventID     string
	FullName    string
	Category    string
	ChestNumber string
	CreatedAt   time.Time
}

type Volunteer struct {
	ID        string
	EventID   string
	Name      string
	CreatedAt time.Time
}

// Criterion is one named, bounded sub-score a judge assigns.
type Criterion struct {
	Name string
	Max  float64
}

// Criteria is the fixed judging rubric. Every submission must carry
// exactly these criteria; total_score is always their sum.
var Criteria = []Criterion{
	{Name: "technical_skill", Max: 25},
	{Name: "artistic_expression", Max: 25},
	{Name: "stage_presence", Max: 25},
	{Name: "overall_impression", Max: 25},
}

// TotalScoreKey is the synthetic feature appended to a score vector
// alongside the rubric criteria.
const TotalScoreKey = "total_score"

type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor buckets an anomaly confidence into a review priority.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence >= 0.8:
		return SeverityHigh
	case confidence >= 0.6:
		return SeverityMedium
	case confidence >= 0.4:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// AnomalyAssessment is the outcome of running a detector over a single
// score vector. Method identifies the strategy that produced it.
type AnomalyAssessment struct {
	IsAnomaly  bool               `json:"is_anomaly"`
	Confidence float64            `json:"confidence"`
	Severity   Severity           `json:"severity"`
	Method     string             `json:"method"`
	Findings   []string           `json:"findings,omitempty"`
	Features   map[string]float64 `json:"features,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// ScoreRecord is one judge's scores for one participant in one event.
// (EventID, ParticipantID, JudgeID) is unique; resubmission upserts.
type ScoreRecord struct {
	ID                int64              `json:"id"`
	EventID           string             `json:"event_id"`
	ParticipantID     string             `json:"participant_id"`
	JudgeID           string             `json:"judge_id"`
	Criteria          map[string]float64 `json:"criteria"`
	Notes             string             `json:"notes"`
	TotalScore        float64            `json:"total_score"`
	IsFlagged         bool               `json:"is_flagged"`
	AnomalyConfidence *float64           `json:"anomaly_confidence"`
	AnomalySeverity   Severity           `json:"anomaly_severity"`
	AnomalyDetails    *AnomalyAssessment `json:"anomaly_details,omitempty"`
	AdminReviewed     bool               `json:"admin_reviewed"`
	ReviewNotes       string             `json:"review_notes"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Result is the published outcome for a participant in an event.
type Result struct {
	ID            int64     `json:"id"`
	EventID       string    `json:"event_id"`
	ParticipantID string    `json:"participant_id"`
	TotalScore    float64   `json:"total_score"`
	Rank          int       `json:"rank"`
	Published     bool      `json:"published"`
	PublishedAt   time.Time `json:"published_at"`
}

type RecheckStatus string

const (
	RecheckPending   RecheckStatus = "pending"
	RecheckAccepted  RecheckStatus = "accepted"
	RecheckCompleted RecheckStatus = "completed"
)

// ValidRecheckStatus reports whether s is one of the three states.
func ValidRecheckStatus(s RecheckStatus) bool {
	return s == RecheckPending || s == RecheckAccepted || s == RecheckCompleted
}

// RecheckRequest is a participant appeal against a published Result.
// The full_name/category/event_name/chest_number/final_score fields are
// snapshots taken at creation so later edits to the source rows do not
// retroactively alter a filed request.
type RecheckRequest struct {
	ID                string        `json:"id"`
	ResultID          int64         `json:"result_id"`
	ParticipantID     string        `json:"participant_id"`
	FullName          string        `json:"full_name"`
	Category          string        `json:"category"`
	EventName         string        `json:"event_name"`
	ChestNumber       string        `json:"chest_number"`
	FinalScore        float64       `json:"final_score"`
	AssignedVolunteer string        `json:"assigned_volunteer"`
	Status            RecheckStatus `json:"status"`
	Reason            string        `json:"reason"`
	SubmittedAt       time.Time     `json:"submitted_at"`
	AcceptedAt        *time.Time    `json:"accepted_at"`
}

type PaymentStatus string

const (
	PaymentCreated  PaymentStatus = "created"
	PaymentCaptured PaymentStatus = "captured"
	PaymentFailed   PaymentStatus = "failed"
)

// PaymentRecord is one ledger entry against a recheck request, keyed by
// the provider order id. Amount is in the smallest currency unit.
type PaymentRecord struct {
	OrderID          string        `json:"order_id"`
	RecheckRequestID string        `json:"recheck_request_id"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	PaymentID        string        `json:"payment_id"`
	Signature        string        `json:"signature"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
