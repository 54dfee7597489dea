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

type EventRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEventRepository(sqlDB *sql.DB, logger zerolog.Logger) *EventRepository {
	return &EventRepository{db: sqlDB, logger: logger}
}

func (r *EventRepository) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, phase, created_at, updated_at FROM events WHERE id = ?`, eventID)

	var e domain.Event
	if err := row.Scan(&e.ID, &e.Name, &e.Phase, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("event %s not found", eventID)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *EventRepository) Create(ctx context.Context, e *domain.Event) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, name, phase, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Phase, now, now)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *EventRepository) SetPhase(ctx context.Context, eventID string, phase domain.EventPhase) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET phase = ?, updated_at = ? WHERE id = ?`,
		phase, time.Now(), eventID)
	if err != nil {
		return fmt.Errorf("failed to set event phase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFound("event %s not found", eventID)
	}
	return nil
}

func (r *EventRepository) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, full_name, category, chest_number, created_at
		 FROM participants WHERE id = ?`, participantID)

	var p domain.Participant
	if err := row.Scan(&p.ID, &p.EventID, &p.FullName, &p.Category, &p.ChestNumber, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("participant %s not found", participantID)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

func (r *EventRepository) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (id, event_id, full_name, category, chest_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.EventID, p.FullName, p.Category, p.ChestNumber, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *EventRepository) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, full_name, category, chest_number, created_at
		 FROM participants WHERE event_id = ? ORDER BY chest_number, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.EventID, &p.FullName, &p.Category, &p.ChestNumber, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *EventRepository) CreateVolunteer(ctx context.Context, v *domain.Volunteer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO volunteers (id, event_id, name, created_at) VALUES (?, ?, ?, ?)`,
		v.ID, v.EventID, v.Name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create volunteer: %w", err)
	}
	return nil
}

// FirstVolunteer returns the earliest-registered volunteer for an event.
// This backs the placeholder assignment policy for recheck requests.
func (r *EventRepository) FirstVolunteer(ctx context.Context, eventID string) (*domain.Volunteer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, name, created_at FROM volunteers
		 WHERE event_id = ? ORDER BY rowid LIMIT 1`, eventID)

	var v domain.Volunteer
	if err := row.Scan(&v.ID, &v.EventID, &v.Name, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFound("no volunteer registered for event %s", eventID)
		}
		return nil, fmt.Errorf("failed to get volunteer: %w", err)
	}
	return &v, nil
}
