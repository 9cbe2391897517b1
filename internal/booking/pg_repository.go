package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation      = "23505"
	activeSlotConstraint = "appointments_active_slot_uq"
)

const appointmentColumns = `
	id, patient_id, doctor_id, hospital_id, to_char(date, 'YYYY-MM-DD'), time, status, type, notes,
	remind_email, remind_sms, remind_whatsapp, remind_intervals,
	created_at, updated_at, cancelled_at, cancelled_by`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var intervals []int

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.HospitalID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Type,
		&a.Notes,
		&a.ReminderPreferences.Email,
		&a.ReminderPreferences.SMS,
		&a.ReminderPreferences.WhatsApp,
		&intervals,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CancelledAt,
		&a.CancelledBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ReminderPreferences.Intervals = intervals
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotConstraint
	}
	return false
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveBySlot(ctx context.Context, slot SlotKey) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND hospital_id = $2 AND date = $3::date AND time = $4
		  AND status <> 'cancelled'
	`, slot.DoctorID, slot.HospitalID, slot.Date, slot.Time)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveForDay(ctx context.Context, doctorID, hospitalID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND hospital_id = $2 AND date = $3::date
		  AND status <> 'cancelled'
		ORDER BY time
	`, doctorID, hospitalID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()
	prefs := appt.ReminderPreferences

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, hospital_id, date, time, status, type, notes,
			remind_email, remind_sms, remind_whatsapp, remind_intervals,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, COALESCE($13::integer[], '{}'), now(), now())
		RETURNING `+appointmentColumns,
		id, appt.PatientID, appt.DoctorID, appt.HospitalID, appt.Date, appt.Time, appt.Status, appt.Type, appt.Notes,
		prefs.Email, prefs.SMS, prefs.WhatsApp, prefs.Intervals,
	)

	created, err := scanAppointment(row)
	if err != nil {
		if isActiveSlotViolation(err) {
			return nil, errDuplicateSlot
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, actorID string, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN $4 ELSE cancelled_at END,
		    cancelled_by = CASE WHEN $2 = 'cancelled' THEN $5 ELSE cancelled_by END
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from, at, actorID,
	)

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor_id, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.ActorID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
