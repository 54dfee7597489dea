package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"festival-scoring/internal/constants"
	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

type ScoreRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewScoreRepository(sqlDB *sql.DB, logger zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{db: sqlDB, logger: logger}
}

// FlaggedFilter narrows the admin review listing. Zero values mean
// "no filter" except Reviewed, which is a tri-state pointer.
type FlaggedFilter struct {
	EventID  string
	JudgeID  string
	Severity domain.Severity
	Reviewed *bool
}

// Upsert writes a score record keyed by (event, participant, judge) in
// a single statement, so two racing submissions for the same identity
// serialize to one deterministic row. submitted_at survives updates.
func (r *ScoreRepository) Upsert(ctx context.Context, rec *domain.ScoreRecord) error {
	criteriaJSON, err := json.Marshal(rec.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	var detailsJSON []byte
	if rec.AnomalyDetails != nil {
		detailsJSON, err = json.Marshal(rec.AnomalyDetails)
		if err != nil {
			return fmt.Errorf("failed to marshal anomaly details: %w", err)
		}
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO score_records
		 (event_id, participant_id, judge_id, criteria, notes, total_score,
		  is_flagged, anomaly_confidence, anomaly_severity, anomaly_details,
		  submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id, participant_id, judge_id) DO UPDATE SET
		  criteria = excluded.criteria,
		  notes = excluded.notes,
		  total_score = excluded.total_score,
		  is_flagged = excluded.is_flagged,
		  anomaly_confidence = excluded.anomaly_confidence,
		  anomaly_severity = excluded.anomaly_severity,
		  anomaly_details = excluded.anomaly_details,
		  admin_reviewed = 0,
		  review_notes = '',
		  updated_at = excluded.updated_at`,
		rec.EventID, rec.ParticipantID, rec.JudgeID, string(criteriaJSON), rec.Notes,
		rec.TotalScore, rec.IsFlagged, rec.AnomalyConfidence, rec.AnomalySeverity,
		nullableString(detailsJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert score record: %w", err)
	}

	stored, err := r.GetByIdentity(ctx, rec.EventID, rec.ParticipantID, rec.JudgeID)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

func (r *ScoreRepository) GetByIdentity(ctx context.Context, eventID, participantID, judgeID string) (*domain.ScoreRecord, error) {
	row := r.db.QueryRowContext(ctx,
		selectScoreColumns+` WHERE event_id = ? AND participant_id = ? AND judge_id = ?`,
		eventID, participantID, judgeID)
	return scanScore(row)
}

func (r *ScoreRepository) GetByID(ctx context.Context, id int64) (*domain.ScoreRecord, error) {
	row := r.db.QueryRowContext(ctx, selectScoreColumns+` WHERE id = ?`, id)
	return scanScore(row)
}

// ListByEvent returns every score record for an event in one query so
// the aggregator can summarize all participants in a single pass.
func (r *ScoreRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		selectScoreColumns+` WHERE event_id = ? ORDER BY participant_id, judge_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

func (r *ScoreRepository) ListFlagged(ctx context.Context, filter FlaggedFilter) ([]domain.ScoreRecord, error) {
	query := selectScoreColumns + ` WHERE is_flagged = 1`
	args := []any{}
	if filter.EventID != "" {
		query += ` AND event_id = ?`
		args = append(args, filter.EventID)
	}
	if filter.JudgeID != "" {
		query += ` AND judge_id = ?`
		args = append(args, filter.JudgeID)
	}
	if filter.Severity != "" {
		query += ` AND anomaly_severity = ?`
		args = append(args, filter.Severity)
	}
	if filter.Reviewed != nil {
		query += ` AND admin_reviewed = ?`
		args = append(args, *filter.Reviewed)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, constants.FlaggedListLimit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// MarkReviewed records an admin sign-off on a flagged record. It never
// alters the score itself.
func (r *ScoreRepository) MarkReviewed(ctx context.Context, id int64, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE score_records SET admin_reviewed = 1, review_notes = ?, updated_at = ?
		 WHERE id = ? AND is_flagged = 1`,
		notes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark score reviewed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("flagged score record %d not found", id)
	}
	return nil
}

const selectScoreColumns = `SELECT id, event_id, participant_id, judge_id, criteria, notes,
 total_score, is_flagged, anomaly_confidence, anomaly_severity, anomaly_details,
 admin_reviewed, review_notes, submitted_at, updated_at FROM score_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*domain.ScoreRecord, error) {
	var rec domain.ScoreRecord
	var criteriaJSON string
	var detailsJSON sql.NullString
	err := row.Scan(&rec.ID, &rec.EventID, &rec.ParticipantID, &rec.JudgeID,
		&criteriaJSON, &rec.Notes, &rec.TotalScore, &rec.IsFlagged,
		&rec.AnomalyConfidence, &rec.AnomalySeverity, &detailsJSON,
		&rec.AdminReviewed, &rec.ReviewNotes, &rec.SubmittedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("score record not found")
		}
		return nil, fmt.Errorf("failed to scan score record: %w", err)
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &rec.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	if detailsJSON.Valid && detailsJSON.String != "" {
		rec.AnomalyDetails = &domain.AnomalyAssessment{}
		if err := json.Unmarshal([]byte(detailsJSON.String), rec.AnomalyDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anomaly details: %w", err)
		}
	}
	return &rec, nil
}

func scanScores(rows *sql.Rows) ([]domain.ScoreRecord, error) {
	var records []domain.ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
