package service

import (
	"context"

	"festival-scoring/internal/aggregate"
	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"
	"festival-scoring/internal/repository"

	"github.com/rs/zerolog"
)

// ResultService materializes published results once an event's scoring
// phase closes. It is the thin upstream of the recheck lifecycle.
type ResultService struct {
	scores   *repository.ScoreRepository
	results  *repository.ResultRepository
	events   *repository.EventRepository
	rechecks *repository.RecheckRepository
	logger   zerolog.Logger
}

func NewResultService(
	scores *repository.ScoreRepository,
	results *repository.ResultRepository,
	events *repository.EventRepository,
	rechecks *repository.RecheckRepository,
	logger zerolog.Logger,
) *ResultService {
	return &ResultService{scores: scores, results: results, events: events, rechecks: rechecks, logger: logger}
}

// Publish closes scoring for an event: ranks every scored participant
// by trimmed-mean final score, persists the results and flips the
// event phase to results_published, all in one transaction.
func (s *ResultService) Publish(ctx context.Context, eventID string) ([]domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Phase != domain.PhaseScoringOpen {
		return nil, domain.NewValidation("event %s results are already published", eventID)
	}

	participants, err := s.events.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.scores.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	summaries := aggregate.Summarize(participants, records, "")
	ranked := aggregate.Rank(summaries)
	if len(ranked) == 0 {
		return nil, domain.NewValidation("event %s has no scored participants to publish", eventID)
	}
	for i := range ranked {
		ranked[i].EventID = eventID
	}

	published, err := s.results.PublishAll(ctx, eventID, ranked)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to publish results")
		return nil, err
	}

	s.logger.Info().Str("event_id", eventID).Int("results", len(published)).Msg("results published")
	return published, nil
}

// ResultView is a Result plus the derived recheck-eligibility flag,
// computed on read so it can never go stale.
type ResultView struct {
	domain.Result
	IsRecheckAllowed bool `json:"is_recheck_allowed"`
}

func (s *ResultService) ListByEvent(ctx context.Context, eventID string) ([]ResultView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	results, err := s.results.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	views := make([]ResultView, 0, len(results))
	for _, res := range results {
		exists, err := s.rechecks.ExistsForResult(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, ResultView{Result: res, IsRecheckAllowed: !exists})
	}
	return views, nil
}
