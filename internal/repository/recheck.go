package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

type RecheckRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRecheckRepository(sqlDB *sql.DB, logger zerolog.Logger) *RecheckRepository {
	return &RecheckRepository{db: sqlDB, logger: logger}
}

// Create inserts a pending request after re-checking, inside the same
// transaction, that the owning event has published results and that no
// request exists yet for the result. The UNIQUE(result_id) index backs
// the duplicate check against concurrent submissions.
func (r *RecheckRepository) Create(ctx context.Context, eventID string, req *domain.RecheckRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var phase domain.EventPhase
	if err := tx.QueryRowContext(ctx,
		`SELECT phase FROM events WHERE id = ?`, eventID).Scan(&phase); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("event %s not found", eventID)
		}
		return fmt.Errorf("failed to read event phase: %w", err)
	}
	if phase != domain.PhaseResultsPublished {
		return domain.NewValidation("recheck requests are only accepted after results are published")
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM recheck_requests WHERE result_id = ?)`,
		req.ResultID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing recheck request: %w", err)
	}
	if exists {
		return domain.NewValidation("a recheck request has already been filed for this result")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recheck_requests
		 (id, result_id, participant_id, full_name, category, event_name, chest_number,
		  final_score, assigned_volunteer, status, reason, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ResultID, req.ParticipantID, req.FullName, req.Category,
		req.EventName, req.ChestNumber, req.FinalScore, req.AssignedVolunteer,
		req.Status, req.Reason, req.SubmittedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.NewValidation("a recheck request has already been filed for this result")
		}
		return fmt.Errorf("failed to insert recheck request: %w", err)
	}

	return tx.Commit()
}

func (r *RecheckRepository) GetByID(ctx context.Context, id string) (*domain.RecheckRequest, error) {
	row := r.db.QueryRowContext(ctx, selectRecheckColumns+` WHERE id = ?`, id)
	return scanRecheck(row)
}

func (r *RecheckRepository) ExistsForResult(ctx context.Context, resultID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM recheck_requests WHERE result_id = ?)`, resultID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recheck request existence: %w", err)
	}
	return exists, nil
}

// Accept is an atomic pending→accepted compare-and-set. Under
// concurrent acceptance exactly one caller's UPDATE matches; the losers
// get a conflict telling them the request was already processed.
func (r *RecheckRepository) Accept(ctx context.Context, id, volunteerID string) (*domain.RecheckRequest, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recheck_requests
		 SET status = ?, accepted_at = ?, assigned_volunteer = ?
		 WHERE id = ? AND status = ?`,
		domain.RecheckAccepted, time.Now(), volunteerID, id, domain.RecheckPending)
	if err != nil {
		return nil, fmt.Errorf("failed to accept recheck request: %w", err)
	}
	return r.afterTransition(ctx, id, res, domain.RecheckPending)
}

// Complete is an atomic accepted→completed compare-and-set.
func (r *RecheckRepository) Complete(ctx context.Context, id string) (*domain.RecheckRequest, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recheck_requests SET status = ? WHERE id = ? AND status = ?`,
		domain.RecheckCompleted, id, domain.RecheckAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to complete recheck request: %w", err)
	}
	return r.afterTransition(ctx, id, res, domain.RecheckAccepted)
}

func (r *RecheckRepository) afterTransition(ctx context.Context, id string, res sql.Result, expected domain.RecheckStatus) (*domain.RecheckRequest, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return r.GetByID(ctx, id)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().
		Str("request_id", id).
		Str("expected", string(expected)).
		Str("actual", string(current.Status)).
		Msg("recheck transition lost compare-and-set")
	return nil, domain.NewConflict("recheck request %s is %s, not %s: already processed", id, current.Status, expected)
}

// ListByStatuses returns requests in any of the given states, oldest
// first. Volunteers see pending+accepted; judges see accepted only.
func (r *RecheckRepository) ListByStatuses(ctx context.Context, statuses ...domain.RecheckStatus) ([]domain.RecheckRequest, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}

	rows, err := r.db.QueryContext(ctx,
		selectRecheckColumns+` WHERE status IN (`+placeholders+`) ORDER BY submitted_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recheck requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.RecheckRequest
	for rows.Next() {
		req, err := scanRecheck(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

const selectRecheckColumns = `SELECT id, result_id, participant_id, full_name, category,
 event_name, chest_number, final_score, assigned_volunteer, status, reason,
 submitted_at, accepted_at FROM recheck_requests`

func scanRecheck(row rowScanner) (*domain.RecheckRequest, error) {
	var req domain.RecheckRequest
	err := row.Scan(&req.ID, &req.ResultID, &req.ParticipantID, &req.FullName,
		&req.Category, &req.EventName, &req.ChestNumber, &req.FinalScore,
		&req.AssignedVolunteer, &req.Status, &req.Reason, &req.SubmittedAt, &req.AcceptedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("recheck request not found")
		}
		return nil, fmt.Errorf("failed to scan recheck request: %w", err)
	}
	return &req, nil
}
