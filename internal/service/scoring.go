package service

import (
	"context"

	"festival-scoring/internal/aggregate"
	"festival-scoring/internal/anomaly"
	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"
	"festival-scoring/internal/metrics"
	"festival-scoring/internal/notify"
	"festival-scoring/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ScoringService struct {
	scores   *repository.ScoreRepository
	events   *repository.EventRepository
	detector *anomaly.Detector
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewScoringService(
	scores *repository.ScoreRepository,
	events *repository.EventRepository,
	detector *anomaly.Detector,
	notifier notify.Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		scores:   scores,
		events:   events,
		detector: detector,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

type SubmitScoreInput struct {
	EventID       string
	ParticipantID string
	JudgeID       string
	Criteria      map[string]float64
	Notes         string
}

// SubmitScore validates a judge submission, derives the total, runs
// anomaly detection inline and upserts the record keyed by (event,
// participant, judge). Resubmission overwrites the prior scores and
// re-runs detection. Detector failures never block the write.
func (s *ScoringService) SubmitScore(ctx context.Context, in SubmitScoreInput) (*domain.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	event, err := s.events.Get(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.Phase != domain.PhaseScoringOpen {
		return nil, domain.NewValidation("event %s is not open for scoring", event.ID)
	}

	participant, err := s.events.GetParticipant(ctx, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.EventID != in.EventID {
		return nil, domain.NewValidation("participant %s is not registered to event %s", in.ParticipantID, in.EventID)
	}

	total, err := validateCriteria(in.Criteria)
	if err != nil {
		return nil, err
	}

	vector := make(map[string]float64, len(in.Criteria)+1)
	for k, v := range in.Criteria {
		vector[k] = v
	}
	vector[domain.TotalScoreKey] = total
	assessment := s.detector.Detect(vector)

	confidence := assessment.Confidence
	rec := &domain.ScoreRecord{
		EventID:           in.EventID,
		ParticipantID:     in.ParticipantID,
		JudgeID:           in.JudgeID,
		Criteria:          in.Criteria,
		Notes:             in.Notes,
		TotalScore:        total,
		IsFlagged:         assessment.IsAnomaly,
		AnomalyConfidence: &confidence,
		AnomalySeverity:   assessment.Severity,
		AnomalyDetails:    &assessment,
	}
	if err := s.scores.Upsert(ctx, rec); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", in.EventID).
			Str("participant_id", in.ParticipantID).
			Str("judge_id", in.JudgeID).
			Msg("failed to upsert score record")
		return nil, err
	}

	s.metrics.ScoreSubmissions.WithLabelValues(boolLabel(rec.IsFlagged)).Inc()
	if rec.IsFlagged {
		s.metrics.AnomaliesFlagged.WithLabelValues(string(assessment.Severity), assessment.Method).Inc()
		s.dispatchFlagNotification(rec)
	}

	s.logger.Info().
		Int64("score_id", rec.ID).
		Str("judge_id", rec.JudgeID).
		Float64("total", rec.TotalScore).
		Bool("flagged", rec.IsFlagged).
		Msg("score submitted")
	return rec, nil
}

// EventSummaries computes the live dashboard for every participant of
// an event from one score listing, on demand and uncached.
func (s *ScoringService) EventSummaries(ctx context.Context, eventID, judgeID string) ([]aggregate.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	participants, err := s.events.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.scores.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return aggregate.Summarize(participants, records, judgeID), nil
}

func (s *ScoringService) ListFlagged(ctx context.Context, filter repository.FlaggedFilter) ([]domain.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.scores.ListFlagged(ctx, filter)
}

// MarkReviewed records an admin sign-off; the score itself is never
// altered by review.
func (s *ScoringService) MarkReviewed(ctx context.Context, scoreID int64, notes string) (*domain.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.scores.MarkReviewed(ctx, scoreID, notes); err != nil {
		return nil, err
	}
	return s.scores.GetByID(ctx, scoreID)
}

func (s *ScoringService) dispatchFlagNotification(rec *domain.ScoreRecord) {
	g := new(errgroup.Group)
	g.Go(func() error {
		return s.notifier.ScoreFlagged(context.Background(), rec)
	})
	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Warn().Err(err).Int64("score_id", rec.ID).Msg("flag notification failed")
		}
	}()
}

// validateCriteria rejects submissions whose criterion set does not
// match the rubric or whose values fall outside [0, max], and returns
// the derived total.
func validateCriteria(criteria map[string]float64) (float64, error) {
	if len(criteria) != len(domain.Criteria) {
		return 0, domain.NewValidation("submission must score exactly %d criteria", len(domain.Criteria))
	}
	var total float64
	for _, c := range domain.Criteria {
		v, ok := criteria[c.Name]
		if !ok {
			return 0, domain.NewValidation("missing criterion %q", c.Name)
		}
		if v < 0 || v > c.Max {
			return 0, domain.NewValidation("criterion %q must be between 0 and %g", c.Name, c.Max)
		}
		total += v
	}
	return total, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
