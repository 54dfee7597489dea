package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"festival-scoring/internal/domain"

	"github.com/rs/zerolog"
)

type ResultRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewResultRepository(sqlDB *sql.DB, logger zerolog.Logger) *ResultRepository {
	return &ResultRepository{db: sqlDB, logger: logger}
}

func (r *ResultRepository) GetByID(ctx context.Context, id int64) (*domain.Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, participant_id, total_score, rank, published, published_at
		 FROM results WHERE id = ?`, id)
	return scanResult(row, fmt.Sprintf("result %d", id))
}

func (r *ResultRepository) GetByEventParticipant(ctx context.Context, eventID, participantID string) (*domain.Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, participant_id, total_score, rank, published, published_at
		 FROM results WHERE event_id = ? AND participant_id = ?`, eventID, participantID)
	return scanResult(row, fmt.Sprintf("result for participant %s in event %s", participantID, eventID))
}

func (r *ResultRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.Result, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, participant_id, total_score, rank, published, published_at
		 FROM results WHERE event_id = ? ORDER BY rank, participant_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var res domain.Result
		if err := rows.Scan(&res.ID, &res.EventID, &res.ParticipantID, &res.TotalScore,
			&res.Rank, &res.Published, &res.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// PublishAll persists an event's ranked results and flips its phase to
// results_published in one transaction, so a half-published scoreboard
// is never observable.
func (r *ResultRepository) PublishAll(ctx context.Context, eventID string, results []domain.Result) ([]domain.Result, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	published := make([]domain.Result, 0, len(results))
	for _, res := range results {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO results (event_id, participant_id, total_score, rank, published, published_at)
			 VALUES (?, ?, ?, ?, 1, ?)
			 ON CONFLICT(event_id, participant_id) DO UPDATE SET
			  total_score = excluded.total_score,
			  rank = excluded.rank,
			  published = 1,
			  published_at = excluded.published_at
			 RETURNING id`,
			res.EventID, res.ParticipantID, res.TotalScore, res.Rank, now)
		if err := row.Scan(&res.ID); err != nil {
			return nil, fmt.Errorf("failed to publish result for %s: %w", res.ParticipantID, err)
		}
		res.Published = true
		res.PublishedAt = now
		published = append(published, res)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET phase = ?, updated_at = ? WHERE id = ?`,
		domain.PhaseResultsPublished, now, eventID); err != nil {
		return nil, fmt.Errorf("failed to update event phase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	return published, nil
}

func scanResult(row *sql.Row, what string) (*domain.Result, error) {
	var res domain.Result
	err := row.Scan(&res.ID, &res.EventID, &res.ParticipantID, &res.TotalScore,
		&res.Rank, &res.Published, &res.PublishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("%s not found", what)
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	return &res, nil
}
