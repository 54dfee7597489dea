package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"festival-scoring/internal/anomaly"
	"festival-scoring/internal/config"
	"festival-scoring/internal/database"
	"festival-scoring/internal/domain"
	"festival-scoring/internal/metrics"
	"festival-scoring/internal/notify"
	"festival-scoring/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeProvider stands in for the payment gateway. Orders get sequential
// ids and only the literal signature "valid" verifies.
type fakeProvider struct {
	mu          sync.Mutex
	createCalls int
	failCreate  bool
}

func (p *fakeProvider) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return "", fmt.Errorf("gateway unavailable")
	}
	p.createCalls++
	return fmt.Sprintf("order_%d", p.createCalls), nil
}

func (p *fakeProvider) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == "valid"
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

type testEnv struct {
	db       *sql.DB
	events   *repository.EventRepository
	scores   *repository.ScoreRepository
	results  *repository.ResultRepository
	rechecks *repository.RecheckRepository
	payments *repository.PaymentRepository
	provider *fakeProvider

	scoring  *ScoringService
	resulter *ResultService
	recheck  *RecheckService
	payment  *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		events:   repository.NewEventRepository(db, logger),
		scores:   repository.NewScoreRepository(db, logger),
		results:  repository.NewResultRepository(db, logger),
		rechecks: repository.NewRecheckRepository(db, logger),
		payments: repository.NewPaymentRepository(db, logger),
		provider: &fakeProvider{},
	}

	m := metrics.New(prometheus.NewRegistry())
	notifier := notify.NewLogNotifier(logger)
	detector := anomaly.New("", logger)

	env.scoring = NewScoringService(env.scores, env.events, detector, notifier, m, logger)
	env.resulter = NewResultService(env.scores, env.results, env.events, env.rechecks, logger)
	env.recheck = NewRecheckService(env.rechecks, env.results, env.events, env.payments,
		FirstVolunteerResolver(env.events), notifier, m, logger)
	env.payment = NewPaymentService(env.payments, env.rechecks, env.provider, m, logger)
	return env
}

func (e *testEnv) seedEvent(t *testing.T, eventID string, participantIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.events.Create(ctx, &domain.Event{ID: eventID, Name: "Light Music", Phase: domain.PhaseScoringOpen}))
	for i, pid := range participantIDs {
		require.NoError(t, e.events.CreateParticipant(ctx, &domain.Participant{
			ID: pid, EventID: eventID, FullName: "Participant " + pid,
			Category: "HS", ChestNumber: fmt.Sprintf("%d", 100+i),
		}))
	}
}

func (e *testEnv) seedVolunteer(t *testing.T, eventID, volunteerID string) {
	t.Helper()
	require.NoError(t, e.events.CreateVolunteer(context.Background(),
		&domain.Volunteer{ID: volunteerID, EventID: eventID, Name: "Volunteer " + volunteerID}))
}

// publishResult pushes a single ranked result for the participant and
// flips the event to results_published.
func (e *testEnv) publishResult(t *testing.T, eventID, participantID string, total float64) *domain.Result {
	t.Helper()
	published, err := e.results.PublishAll(context.Background(), eventID, []domain.Result{
		{EventID: eventID, ParticipantID: participantID, TotalScore: total, Rank: 1},
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	return &published[0]
}

// settleFee runs the initiate+verify flow until the recheck fee is paid.
func (e *testEnv) settleFee(t *testing.T, requestID, participantID string) {
	t.Helper()
	ctx := context.Background()
	initiated, err := e.payment.InitiatePayment(ctx, requestID, participantID)
	require.NoError(t, err)
	require.False(t, initiated.NoPaymentDue)
	_, err = e.payment.VerifyPayment(ctx, initiated.OrderID, "pay_1", "valid", participantID)
	require.NoError(t, err)
}

func criteria(technical, artistic, stage, overall float64) map[string]float64 {
	return map[string]float64{
		"technical_skill":     technical,
		"artistic_expression": artistic,
		"stage_presence":      stage,
		"overall_impression":  overall,
	}
}
