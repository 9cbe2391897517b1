package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `
	id, appointment_id, patient_id, doctor_id, hospital_id, channel, offset_hours,
	starts_at, scheduled_for, status, failure_reason, sent_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.AppointmentID,
		&e.PatientID,
		&e.DoctorID,
		&e.HospitalID,
		&e.Channel,
		&e.OffsetHours,
		&e.StartsAt,
		&e.ScheduledFor,
		&e.Status,
		&e.FailureReason,
		&e.SentAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) CreateEvents(ctx context.Context, events []Event) ([]Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	created := make([]Event, 0, len(events))

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			batch.Queue(`
				INSERT INTO reminder_events (
					id, appointment_id, patient_id, doctor_id, hospital_id, channel, offset_hours,
					starts_at, scheduled_for, status, failure_reason, created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', '', now(), now())
				ON CONFLICT (appointment_id, channel, offset_hours) DO NOTHING
				RETURNING `+eventColumns,
				uuid.New(), ev.AppointmentID, ev.PatientID, ev.DoctorID, ev.HospitalID, ev.Channel, ev.OffsetHours,
				ev.StartsAt, ev.ScheduledFor,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range events {
			e, err := scanEvent(results.QueryRow())
			if errors.Is(err, pgx.ErrNoRows) {
				// already scheduled
				continue
			}
			if err != nil {
				return err
			}
			created = append(created, *e)
		}
		return results.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("insert reminder events: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM reminder_events
		WHERE appointment_id = $1
		ORDER BY scheduled_for, channel
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *PgRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM reminder_events
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for, channel
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *PgRepository) MarkResult(ctx context.Context, id uuid.UUID, status Status, reason string, at time.Time) (*Event, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminder_events
		SET status = $2,
		    failure_reason = $3,
		    sent_at = CASE WHEN $2 = 'sent' THEN $4 ELSE sent_at END,
		    updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+eventColumns,
		id, status, reason, at,
	)

	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("mark reminder %s: %w", id, err)
	}
	return ev, nil
}

func (r *PgRepository) CancelPending(ctx context.Context, appointmentID uuid.UUID, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder_events
		SET status = 'cancelled', updated_at = $2
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID, at)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
