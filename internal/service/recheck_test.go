package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"festival-scoring/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequestSnapshotsParticipantData(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85.5)

	req, err := env.recheck.CreateRequest(context.Background(), result.ID, "p1", "scores look swapped")
	require.NoError(t, err)

	assert.Equal(t, domain.RecheckPending, req.Status)
	assert.Equal(t, result.ID, req.ResultID)
	assert.Equal(t, "Participant p1", req.FullName)
	assert.Equal(t, "Light Music", req.EventName)
	assert.Equal(t, "100", req.ChestNumber)
	assert.Equal(t, 85.5, req.FinalScore)
	assert.Equal(t, "v1", req.AssignedVolunteer)
	assert.Nil(t, req.AcceptedAt)
	assert.WithinDuration(t, time.Now(), req.SubmittedAt, time.Minute)
}

func TestCreateRequestOnePerResultLifetime(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	req, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "first")
	require.NoError(t, err)

	_, err = env.recheck.CreateRequest(ctx, result.ID, "p1", "second")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	// Completing the request does not reopen eligibility.
	_, err = env.recheck.AcceptRequest(ctx, req.ID, "v1")
	require.NoError(t, err)
	env.settleFee(t, req.ID, "p1")
	_, err = env.recheck.CompleteRequest(ctx, req.ID)
	require.NoError(t, err)

	_, err = env.recheck.CreateRequest(ctx, result.ID, "p1", "third")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCreateRequestRejectsForeignParticipant(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1", "p2")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)

	_, err := env.recheck.CreateRequest(context.Background(), result.ID, "p2", "not mine")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCreateRequestRejectsUnpublishedPhase(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	// Phase rolled back, the stale result row alone must not qualify.
	require.NoError(t, env.events.SetPhase(ctx, "ev1", domain.PhaseScoringOpen))

	_, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "too early")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCreateRequestWithoutVolunteer(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	result := env.publishResult(t, "ev1", "p1", 85)

	_, err := env.recheck.CreateRequest(context.Background(), result.ID, "p1", "reason")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "no volunteer is available")
}

func TestCreateRequestMissingResult(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")

	_, err := env.recheck.CreateRequest(context.Background(), 999, "p1", "reason")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAcceptRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	req, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "reason")
	require.NoError(t, err)

	accepted, err := env.recheck.AcceptRequest(ctx, req.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, domain.RecheckAccepted, accepted.Status)
	assert.Equal(t, "v2", accepted.AssignedVolunteer)
	require.NotNil(t, accepted.AcceptedAt)

	// A second acceptance loses the compare-and-set.
	_, err = env.recheck.AcceptRequest(ctx, req.ID, "v3")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestAcceptRequestConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	req, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "reason")
	require.NoError(t, err)

	const volunteers = 8
	errs := make([]error, volunteers)
	var wg sync.WaitGroup
	for i := range volunteers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.recheck.AcceptRequest(ctx, req.ID, string(rune('a'+i)))
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case domain.KindOf(err) == domain.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, volunteers-1, conflicts)
}

func TestCompleteRequestOrdering(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	req, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "reason")
	require.NoError(t, err)

	// Pending requests cannot complete.
	_, err = env.recheck.CompleteRequest(ctx, req.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = env.recheck.AcceptRequest(ctx, req.ID, "v1")
	require.NoError(t, err)

	// Accepted but unpaid cannot complete either.
	_, err = env.recheck.CompleteRequest(ctx, req.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "fee is not settled")

	env.settleFee(t, req.ID, "p1")

	completed, err := env.recheck.CompleteRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecheckCompleted, completed.Status)

	// Completion is terminal.
	_, err = env.recheck.CompleteRequest(ctx, req.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestQueues(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1", "p2")
	env.seedVolunteer(t, "ev1", "v1")
	ctx := context.Background()

	published, err := env.results.PublishAll(ctx, "ev1", []domain.Result{
		{EventID: "ev1", ParticipantID: "p1", TotalScore: 90, Rank: 1},
		{EventID: "ev1", ParticipantID: "p2", TotalScore: 80, Rank: 2},
	})
	require.NoError(t, err)

	first, err := env.recheck.CreateRequest(ctx, published[0].ID, "p1", "reason")
	require.NoError(t, err)
	second, err := env.recheck.CreateRequest(ctx, published[1].ID, "p2", "reason")
	require.NoError(t, err)

	_, err = env.recheck.AcceptRequest(ctx, first.ID, "v1")
	require.NoError(t, err)

	volunteerQueue, err := env.recheck.VolunteerQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, volunteerQueue, 2)

	judgeQueue, err := env.recheck.JudgeQueue(ctx)
	require.NoError(t, err)
	require.Len(t, judgeQueue, 1)
	assert.Equal(t, first.ID, judgeQueue[0].ID)

	env.settleFee(t, first.ID, "p1")
	_, err = env.recheck.CompleteRequest(ctx, first.ID)
	require.NoError(t, err)

	// Completed requests drop out of both queues.
	volunteerQueue, err = env.recheck.VolunteerQueue(ctx)
	require.NoError(t, err)
	require.Len(t, volunteerQueue, 1)
	assert.Equal(t, second.ID, volunteerQueue[0].ID)

	judgeQueue, err = env.recheck.JudgeQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, judgeQueue)
}

func TestValidateRequestData(t *testing.T) {
	now := time.Now()
	result := &domain.Result{ID: 1, ParticipantID: "p1"}
	good := &domain.RecheckRequest{
		ID: "r1", ResultID: 1, ParticipantID: "p1", FullName: "Anjali",
		EventName: "Light Music", Status: domain.RecheckAccepted, AcceptedAt: &now,
	}
	assert.Empty(t, ValidateRequestData(good, result))

	tests := []struct {
		name    string
		mutate  func(*domain.RecheckRequest)
		problem string
	}{
		{"empty full name", func(r *domain.RecheckRequest) { r.FullName = "" }, "full_name"},
		{"empty event name", func(r *domain.RecheckRequest) { r.EventName = "" }, "event_name"},
		{"invalid status", func(r *domain.RecheckRequest) { r.Status = "limbo" }, "valid state"},
		{"participant mismatch", func(r *domain.RecheckRequest) { r.ParticipantID = "p2" }, "does not match"},
		{"accepted_at on pending", func(r *domain.RecheckRequest) { r.Status = domain.RecheckPending }, "pending"},
		{"accepted_at missing", func(r *domain.RecheckRequest) { r.AcceptedAt = nil }, "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := *good
			tt.mutate(&req)
			problems := ValidateRequestData(&req, result)
			require.Len(t, problems, 1)
			assert.Contains(t, problems[0], tt.problem)
		})
	}
}

func TestValidateRequestDataService(t *testing.T) {
	env := newTestEnv(t)
	env.seedEvent(t, "ev1", "p1")
	env.seedVolunteer(t, "ev1", "v1")
	result := env.publishResult(t, "ev1", "p1", 85)
	ctx := context.Background()

	req, err := env.recheck.CreateRequest(ctx, result.ID, "p1", "reason")
	require.NoError(t, err)

	problems, err := env.recheck.ValidateRequestData(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, problems)

	_, err = env.recheck.ValidateRequestData(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
