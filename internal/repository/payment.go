package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

type PaymentRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPaymentRepository(sqlDB *sql.DB, logger zerolog.Logger) *PaymentRepository {
	return &PaymentRepository{db: sqlDB, logger: logger}
}

func (r *PaymentRepository) Insert(ctx context.Context, rec *domain.PaymentRecord) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments
		 (order_id, recheck_request_id, amount, currency, status, payment_id, signature, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.RecheckRequestID, rec.Amount, rec.Currency, rec.Status,
		rec.PaymentID, rec.Signature, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert payment record: %w", err)
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx, selectPaymentColumns+` WHERE order_id = ?`, orderID)
	return scanPayment(row, orderID)
}

// CapturedSum is the total captured against a recheck request, used to
// derive the outstanding balance.
func (r *PaymentRepository) CapturedSum(ctx context.Context, recheckRequestID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments
		 WHERE recheck_request_id = ? AND status = ?`,
		recheckRequestID, domain.PaymentCaptured).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum captured payments: %w", err)
	}
	return sum, nil
}

// Capture moves a created order to captured. The captured sum for the
// owning recheck request is re-derived inside the same transaction, and
// an order whose amount no longer fits within fee − captured (a stale
// order initiated before another one settled) is voided to failed
// instead, so the ledger can never exceed the fee. Re-capturing an
// already-captured order is a no-op. The boolean reports whether this
// call performed the capture.
func (r *PaymentRepository) Capture(ctx context.Context, orderID, paymentID, signature string) (*domain.PaymentRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanPayment(tx.QueryRowContext(ctx,
		selectPaymentColumns+` WHERE order_id = ?`, orderID), orderID)
	if err != nil {
		return nil, false, err
	}
	if rec.Status == domain.PaymentCaptured {
		return rec, false, nil
	}
	if rec.Status != domain.PaymentCreated {
		return nil, false, domain.NewConflict("payment order %s is %s and cannot be captured", orderID, rec.Status)
	}

	var capturedSum int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments
		 WHERE recheck_request_id = ? AND status = ?`,
		rec.RecheckRequestID, domain.PaymentCaptured).Scan(&capturedSum); err != nil {
		return nil, false, fmt.Errorf("failed to sum captured payments: %w", err)
	}

	now := time.Now()
	if rec.Amount > constants.RecheckFee-capturedSum {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, updated_at = ? WHERE order_id = ?`,
			domain.PaymentFailed, now, orderID); err != nil {
			return nil, false, fmt.Errorf("failed to void stale payment order: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit void: %w", err)
		}
		r.logger.Warn().
			Str("order_id", orderID).
			Int64("amount", rec.Amount).
			Int64("captured_sum", capturedSum).
			Msg("stale payment order voided")
		return nil, false, domain.NewConflict(
			"payment order %s for %d exceeds the outstanding fee and was voided", orderID, rec.Amount)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, payment_id = ?, signature = ?, updated_at = ?
		 WHERE order_id = ? AND status = ?`,
		domain.PaymentCaptured, paymentID, signature, now, orderID, domain.PaymentCreated); err != nil {
		return nil, false, fmt.Errorf("failed to capture payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit capture: %w", err)
	}

	rec.Status = domain.PaymentCaptured
	rec.PaymentID = paymentID
	rec.Signature = signature
	rec.UpdatedAt = now
	return rec, true, nil
}

func (r *PaymentRepository) ListByRecheck(ctx context.Context, recheckRequestID string) ([]domain.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPaymentColumns+` WHERE recheck_request_id = ? ORDER BY created_at`, recheckRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var records []domain.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows, "")
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

const selectPaymentColumns = `SELECT order_id, recheck_request_id, amount, currency, status,
 payment_id, signature, created_at, updated_at FROM payments`

func scanPayment(row rowScanner, orderID string) (*domain.PaymentRecord, error) {
	var rec domain.PaymentRecord
	err := row.Scan(&rec.OrderID, &rec.RecheckRequestID, &rec.Amount, &rec.Currency,
		&rec.Status, &rec.PaymentID, &rec.Signature, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("payment order %s not found", orderID)
		}
		return nil, fmt.Errorf("failed to scan payment record: %w", err)
	}
	return &rec, nil
}
