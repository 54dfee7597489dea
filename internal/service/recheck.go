package service

import (
	"context"
	"time"

	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"
	"festival-scoring/internal/metrics"
	"festival-scoring/internal/notify"
	"festival-scoring/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// VolunteerResolver picks the volunteer a new request is provisionally
// assigned to. A placeholder policy stands in for real load balancing;
// swapping it never touches the state machine.
type VolunteerResolver func(ctx context.Context, eventID string) (*domain.Volunteer, error)

// FirstVolunteerResolver assigns the earliest-registered volunteer of
// the event.
func FirstVolunteerResolver(events *repository.EventRepository) VolunteerResolver {
	return func(ctx context.Context, eventID string) (*domain.Volunteer, error) {
		return events.FirstVolunteer(ctx, eventID)
	}
}

type RecheckService struct {
	rechecks *repository.RecheckRepository
	results  *repository.ResultRepository
	events   *repository.EventRepository
	payments *repository.PaymentRepository
	resolve  VolunteerResolver
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewRecheckService(
	rechecks *repository.RecheckRepository,
	results *repository.ResultRepository,
	events *repository.EventRepository,
	payments *repository.PaymentRepository,
	resolve VolunteerResolver,
	notifier notify.Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *RecheckService {
	return &RecheckService{
		rechecks: rechecks,
		results:  results,
		events:   events,
		payments: payments,
		resolve:  resolve,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// CreateRequest files a recheck against a published result. The checks
// run in order and the first failure wins: caller owns the result, the
// event has published results, no request exists yet for the result, a
// volunteer is resolvable. A result gets at most one request for its
// lifetime. Snapshot fields are copied at this instant.
func (s *RecheckService) CreateRequest(ctx context.Context, resultID int64, participantID, reason string) (*domain.RecheckRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		s.countTransition("create", "rejected")
		return nil, err
	}
	if result.ParticipantID != participantID {
		s.countTransition("create", "rejected")
		return nil, domain.NewValidation("only the participant who owns the result may request a recheck")
	}

	event, err := s.events.Get(ctx, result.EventID)
	if err != nil {
		s.countTransition("create", "rejected")
		return nil, err
	}
	if event.Phase != domain.PhaseResultsPublished {
		s.countTransition("create", "rejected")
		return nil, domain.NewValidation("recheck requests are only accepted after results are published")
	}

	exists, err := s.rechecks.ExistsForResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.countTransition("create", "rejected")
		return nil, domain.NewValidation("a recheck request has already been filed for this result")
	}

	volunteer, err := s.resolve(ctx, result.EventID)
	if err != nil {
		s.countTransition("create", "rejected")
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.NewValidation("no volunteer is available for event %s", result.EventID)
		}
		return nil, err
	}

	participant, err := s.events.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}

	req := &domain.RecheckRequest{
		ID:                uuid.New().String(),
		ResultID:          result.ID,
		ParticipantID:     participant.ID,
		FullName:          participant.FullName,
		Category:          participant.Category,
		EventName:         event.Name,
		ChestNumber:       participant.ChestNumber,
		FinalScore:        result.TotalScore,
		AssignedVolunteer: volunteer.ID,
		Status:            domain.RecheckPending,
		Reason:            reason,
		SubmittedAt:       time.Now(),
	}

	// Phase and duplicate checks repeat inside the insert transaction;
	// the UNIQUE(result_id) index settles concurrent submissions.
	if err := s.rechecks.Create(ctx, event.ID, req); err != nil {
		s.countTransition("create", "rejected")
		return nil, err
	}

	s.countTransition("create", "ok")
	s.dispatchVolunteerNotification(req)
	s.logger.Info().
		Str("request_id", req.ID).
		Int64("result_id", result.ID).
		Str("participant_id", participant.ID).
		Msg("recheck request created")
	return req, nil
}

// AcceptRequest claims a pending request for the accepting volunteer.
// Assignment is first-to-accept: any volunteer may claim any pending
// request, and under a race exactly one succeeds.
func (s *RecheckService) AcceptRequest(ctx context.Context, requestID, volunteerID string) (*domain.RecheckRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	req, err := s.rechecks.Accept(ctx, requestID, volunteerID)
	if err != nil {
		s.countTransition("accept", "rejected")
		return nil, err
	}

	s.countTransition("accept", "ok")
	s.logger.Info().
		Str("request_id", requestID).
		Str("volunteer_id", volunteerID).
		Msg("recheck request accepted")
	return req, nil
}

// CompleteRequest closes an accepted request. The recheck fee must be
// fully captured first; completion is the terminal state.
func (s *RecheckService) CompleteRequest(ctx context.Context, requestID string) (*domain.RecheckRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	current, err := s.rechecks.GetByID(ctx, requestID)
	if err != nil {
		s.countTransition("complete", "rejected")
		return nil, err
	}
	if current.Status != domain.RecheckAccepted {
		s.countTransition("complete", "rejected")
		return nil, domain.NewConflict("recheck request %s is %s, not %s: already processed",
			requestID, current.Status, domain.RecheckAccepted)
	}

	captured, err := s.payments.CapturedSum(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if constants.RecheckFee-captured > 0 {
		s.countTransition("complete", "rejected")
		return nil, domain.NewValidation("recheck fee is not settled: %d outstanding", constants.RecheckFee-captured)
	}

	req, err := s.rechecks.Complete(ctx, requestID)
	if err != nil {
		s.countTransition("complete", "rejected")
		return nil, err
	}

	s.countTransition("complete", "ok")
	s.logger.Info().Str("request_id", requestID).Msg("recheck request completed")
	return req, nil
}

// VolunteerQueue lists the requests a volunteer tracks: unclaimed
// pending work plus accepted work, regardless of assignee.
func (s *RecheckService) VolunteerQueue(ctx context.Context) ([]domain.RecheckRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.rechecks.ListByStatuses(ctx, domain.RecheckPending, domain.RecheckAccepted)
}

// JudgeQueue lists requests a judge re-analyzes: those a volunteer has
// already triaged.
func (s *RecheckService) JudgeQueue(ctx context.Context) ([]domain.RecheckRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.rechecks.ListByStatuses(ctx, domain.RecheckAccepted)
}

// ValidateRequestData is a standalone consistency check for admin
// tooling: snapshots present, status valid, participant matches the
// referenced result, accepted_at set iff the request left pending. It
// returns the list of problems found, empty when consistent.
func (s *RecheckService) ValidateRequestData(ctx context.Context, requestID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	req, err := s.rechecks.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	result, err := s.results.GetByID(ctx, req.ResultID)
	if err != nil {
		return nil, err
	}
	return ValidateRequestData(req, result), nil
}

func ValidateRequestData(req *domain.RecheckRequest, result *domain.Result) []string {
	var problems []string
	if req.FullName == "" {
		problems = append(problems, "snapshot full_name is empty")
	}
	if req.EventName == "" {
		problems = append(problems, "snapshot event_name is empty")
	}
	if !domain.ValidRecheckStatus(req.Status) {
		problems = append(problems, "status is not a valid state")
	}
	if result.ParticipantID != req.ParticipantID {
		problems = append(problems, "participant does not match the referenced result")
	}
	if req.Status == domain.RecheckPending && req.AcceptedAt != nil {
		problems = append(problems, "accepted_at is set on a pending request")
	}
	if req.Status != domain.RecheckPending && req.AcceptedAt == nil {
		problems = append(problems, "accepted_at is missing on a processed request")
	}
	return problems
}

func (s *RecheckService) dispatchVolunteerNotification(req *domain.RecheckRequest) {
	g := new(errgroup.Group)
	g.Go(func() error {
		return s.notifier.VolunteerNewRequest(context.Background(), req)
	})
	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Warn().Err(err).Str("request_id", req.ID).Msg("volunteer notification failed")
		}
	}()
}

func (s *RecheckService) countTransition(transition, outcome string) {
	s.metrics.RecheckTransitions.WithLabelValues(transition, outcome).Inc()
}
