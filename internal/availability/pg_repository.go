package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var tpl []byte

	err := row.Scan(
		&rec.DoctorID,
		&rec.HospitalID,
		&tpl,
		&rec.AppointmentDurationMinutes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec.WeeklyTemplate = WeeklyTemplate{}
	if len(tpl) > 0 {
		if err := json.Unmarshal(tpl, &rec.WeeklyTemplate); err != nil {
			return nil, fmt.Errorf("decode weekly template: %w", err)
		}
	}
	return &rec, nil
}

func scanSpecificDate(row pgx.Row) (SpecificDate, error) {
	var sd SpecificDate
	var start, end *string

	if err := row.Scan(&sd.Date, &sd.IsAvailable, &start, &end); err != nil {
		return SpecificDate{}, err
	}
	if start != nil && end != nil {
		sd.TimeRange = &TimeRange{StartTime: *start, EndTime: *end}
	}
	return sd, nil
}

func scanException(row pgx.Row) (Exception, error) {
	var ex Exception
	var reason *string

	if err := row.Scan(&ex.Date, &ex.IsAvailable, &reason); err != nil {
		return Exception{}, err
	}
	if reason != nil {
		ex.Reason = *reason
	}
	return ex, nil
}

func load(ctx context.Context, q querier, doctorID, hospitalID string) (*Record, error) {
	rec, err := scanRecord(q.QueryRow(ctx, `
		SELECT doctor_id, hospital_id, weekly_template, appointment_duration_minutes, created_at, updated_at
		FROM availability_records
		WHERE doctor_id = $1 AND hospital_id = $2
	`, doctorID, hospitalID))
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), is_available, start_time, end_time
		FROM availability_specific_dates
		WHERE doctor_id = $1 AND hospital_id = $2
		ORDER BY date
	`, doctorID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("query specific dates: %w", err)
	}
	rec.SpecificDates = []SpecificDate{}
	for rows.Next() {
		sd, err := scanSpecificDate(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rec.SpecificDates = append(rec.SpecificDates, sd)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), is_available, reason
		FROM availability_exceptions
		WHERE doctor_id = $1 AND hospital_id = $2
		ORDER BY date
	`, doctorID, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("query exceptions: %w", err)
	}
	defer rows.Close()

	rec.Exceptions = []Exception{}
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		rec.Exceptions = append(rec.Exceptions, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

func ensureRecord(ctx context.Context, tx pgx.Tx, doctorID, hospitalID string, defaultDuration int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_records (doctor_id, hospital_id, weekly_template, appointment_duration_minutes, created_at, updated_at)
		VALUES ($1, $2, '{}'::jsonb, $3, now(), now())
		ON CONFLICT (doctor_id, hospital_id) DO NOTHING
	`, doctorID, hospitalID, defaultDuration)
	if err != nil {
		return fmt.Errorf("ensure availability record: %w", err)
	}
	return nil
}

func touch(ctx context.Context, tx pgx.Tx, doctorID, hospitalID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE availability_records SET updated_at = now()
		WHERE doctor_id = $1 AND hospital_id = $2
	`, doctorID, hospitalID)
	if err != nil {
		return fmt.Errorf("touch availability record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Interface methods

func (r *PgRepository) Get(ctx context.Context, doctorID, hospitalID string) (*Record, error) {
	return load(ctx, r.pool, doctorID, hospitalID)
}

func (r *PgRepository) SaveWeeklyTemplate(ctx context.Context, doctorID, hospitalID string, tpl WeeklyTemplate, durationMinutes, defaultDuration int) (*Record, error) {
	data, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("encode weekly template: %w", err)
	}

	var out *Record
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureRecord(ctx, tx, doctorID, hospitalID, defaultDuration); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE availability_records
			SET weekly_template = $3,
			    appointment_duration_minutes = CASE WHEN $4 > 0 THEN $4 ELSE appointment_duration_minutes END,
			    updated_at = now()
			WHERE doctor_id = $1 AND hospital_id = $2
		`, doctorID, hospitalID, data, durationMinutes)
		if err != nil {
			return fmt.Errorf("save weekly template: %w", err)
		}

		out, err = load(ctx, tx, doctorID, hospitalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) UpsertSpecificDate(ctx context.Context, doctorID, hospitalID string, entry SpecificDate, defaultDuration int) (*Record, error) {
	var start, end *string
	if entry.TimeRange != nil {
		start, end = &entry.TimeRange.StartTime, &entry.TimeRange.EndTime
	}

	var out *Record
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureRecord(ctx, tx, doctorID, hospitalID, defaultDuration); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO availability_specific_dates (doctor_id, hospital_id, date, is_available, start_time, end_time)
			VALUES ($1, $2, $3::date, $4, $5, $6)
			ON CONFLICT (doctor_id, hospital_id, date) DO UPDATE
			SET is_available = EXCLUDED.is_available,
			    start_time = EXCLUDED.start_time,
			    end_time = EXCLUDED.end_time
		`, doctorID, hospitalID, entry.Date, entry.IsAvailable, start, end)
		if err != nil {
			return fmt.Errorf("upsert specific date: %w", err)
		}

		if err := touch(ctx, tx, doctorID, hospitalID); err != nil {
			return err
		}
		out, err = load(ctx, tx, doctorID, hospitalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) RemoveSpecificDate(ctx context.Context, doctorID, hospitalID, date string) (*Record, error) {
	return r.remove(ctx, doctorID, hospitalID, `
		DELETE FROM availability_specific_dates
		WHERE doctor_id = $1 AND hospital_id = $2 AND date = $3::date
	`, date)
}

func (r *PgRepository) UpsertException(ctx context.Context, doctorID, hospitalID string, entry Exception, defaultDuration int) (*Record, error) {
	var out *Record
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureRecord(ctx, tx, doctorID, hospitalID, defaultDuration); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO availability_exceptions (doctor_id, hospital_id, date, is_available, reason)
			VALUES ($1, $2, $3::date, $4, $5)
			ON CONFLICT (doctor_id, hospital_id, date) DO UPDATE
			SET is_available = EXCLUDED.is_available,
			    reason = EXCLUDED.reason
		`, doctorID, hospitalID, entry.Date, entry.IsAvailable, entry.Reason)
		if err != nil {
			return fmt.Errorf("upsert exception: %w", err)
		}

		if err := touch(ctx, tx, doctorID, hospitalID); err != nil {
			return err
		}
		out, err = load(ctx, tx, doctorID, hospitalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) RemoveException(ctx context.Context, doctorID, hospitalID, date string) (*Record, error) {
	return r.remove(ctx, doctorID, hospitalID, `
		DELETE FROM availability_exceptions
		WHERE doctor_id = $1 AND hospital_id = $2 AND date = $3::date
	`, date)
}

func (r *PgRepository) remove(ctx context.Context, doctorID, hospitalID, stmt, date string) (*Record, error) {
	var out *Record
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := touch(ctx, tx, doctorID, hospitalID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, stmt, doctorID, hospitalID, date); err != nil {
			return fmt.Errorf("remove override: %w", err)
		}
		var err error
		out, err = load(ctx, tx, doctorID, hospitalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
