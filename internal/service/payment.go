package service

import (
	"context"

	"festival-scoring/internal/api"
	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"
	"festival-scoring/internal/metrics"
	"festival-scoring/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PaymentService struct {
	payments *repository.PaymentRepository
	rechecks *repository.RecheckRepository
	provider api.Provider
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewPaymentService(
	payments *repository.PaymentRepository,
	rechecks *repository.RecheckRepository,
	provider api.Provider,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		rechecks: rechecks,
		provider: provider,
		metrics:  m,
		logger:   logger,
	}
}

// InitiateResult reports what came of an initiation attempt. When the
// fee is already settled NoPaymentDue is set and no order exists.
type InitiateResult struct {
	NoPaymentDue bool   `json:"no_payment_due"`
	OrderID      string `json:"order_id,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Outstanding  int64  `json:"outstanding"`
}

// InitiatePayment opens a provider order for the outstanding recheck
// fee. Outstanding = fee − captured sum; at or below zero the call
// short-circuits without contacting the provider. Provider-imposed
// amount bounds are checked before any external call.
func (s *PaymentService) InitiatePayment(ctx context.Context, recheckRequestID, participantID string) (*InitiateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	req, err := s.rechecks.GetByID(ctx, recheckRequestID)
	if err != nil {
		return nil, err
	}
	if req.ParticipantID != participantID {
		return nil, domain.NewValidation("only the requesting participant may pay for this recheck")
	}

	captured, err := s.payments.CapturedSum(ctx, recheckRequestID)
	if err != nil {
		return nil, err
	}
	outstanding := constants.RecheckFee - captured
	if outstanding <= 0 {
		s.logger.Info().Str("request_id", recheckRequestID).Msg("no payment due")
		return &InitiateResult{NoPaymentDue: true, Outstanding: 0}, nil
	}
	if outstanding < constants.ProviderMinAmount {
		return nil, domain.NewValidation("outstanding amount %d is below the provider minimum of %d",
			outstanding, constants.ProviderMinAmount)
	}
	if outstanding > constants.ProviderMaxAmount {
		return nil, domain.NewValidation("outstanding amount %d exceeds the provider maximum of %d",
			outstanding, constants.ProviderMaxAmount)
	}

	receipt, err := gonanoid.New()
	if err != nil {
		return nil, domain.NewDependency("failed to generate receipt id", err)
	}

	orderID, err := s.provider.CreateOrder(ctx, outstanding, constants.PaymentCurrency, receipt)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", recheckRequestID).Msg("provider order creation failed")
		return nil, domain.NewDependency("payment provider order creation failed", err)
	}

	rec := &domain.PaymentRecord{
		OrderID:          orderID,
		RecheckRequestID: recheckRequestID,
		Amount:           outstanding,
		Currency:         constants.PaymentCurrency,
		Status:           domain.PaymentCreated,
	}
	if err := s.payments.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", recheckRequestID).
		Str("order_id", orderID).
		Int64("amount", outstanding).
		Msg("payment initiated")
	return &InitiateResult{
		OrderID:     orderID,
		Amount:      outstanding,
		Currency:    constants.PaymentCurrency,
		Outstanding: outstanding,
	}, nil
}

// VerifyPayment checks the provider signature for an order and, on
// success, marks the ledger entry captured. Re-verifying a captured
// order is a no-op success; a failed verification leaves the entry in
// created so the outstanding balance stays correct for retry. An order
// whose amount no longer fits the outstanding fee is voided at capture
// time, keeping the captured sum within the fee.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderID, paymentID, signature, participantID string) (*domain.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	rec, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	req, err := s.rechecks.GetByID(ctx, rec.RecheckRequestID)
	if err != nil {
		return nil, err
	}
	if req.ParticipantID != participantID {
		return nil, domain.NewValidation("only the requesting participant may verify this payment")
	}

	if rec.Status == domain.PaymentCaptured {
		s.logger.Debug().Str("order_id", orderID).Msg("payment already captured, verification is a no-op")
		return rec, nil
	}

	if !s.provider.VerifySignature(orderID, paymentID, signature) {
		s.logger.Warn().Str("order_id", orderID).Msg("payment signature verification failed")
		return nil, domain.NewValidation("payment signature verification failed for order %s", orderID)
	}

	// Capture re-checks the ledger inside its own transaction: a stale
	// order that no longer fits the outstanding fee is voided, and a
	// race lost to a concurrent verification of the same order still
	// returns the captured row.
	captured, didCapture, err := s.payments.Capture(ctx, orderID, paymentID, signature)
	if err != nil {
		return nil, err
	}

	if didCapture {
		s.metrics.PaymentsCaptured.Inc()
		s.metrics.AmountCaptured.Add(float64(captured.Amount))
	}
	s.logger.Info().
		Str("order_id", orderID).
		Str("payment_id", paymentID).
		Int64("amount", captured.Amount).
		Msg("payment captured")
	return captured, nil
}

// Outstanding reports the unpaid remainder of the recheck fee.
func (s *PaymentService) Outstanding(ctx context.Context, recheckRequestID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.rechecks.GetByID(ctx, recheckRequestID); err != nil {
		return 0, err
	}
	captured, err := s.payments.CapturedSum(ctx, recheckRequestID)
	if err != nil {
		return 0, err
	}
	outstanding := constants.RecheckFee - captured
	if outstanding < 0 {
		outstanding = 0
	}
	return outstanding, nil
}
