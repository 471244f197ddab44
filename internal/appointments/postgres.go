package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxDB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists appointment rows to PostgreSQL for self-hosted
// deployments. It honors the same most-recent-row update contract as the
// REST store.
type PGStore struct {
	db pgxDB
}

// NewPGStore builds a Postgres-backed Store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	if db == nil {
		panic("appointments: pgx pool cannot be nil")
	}
	return &PGStore{db: db}
}

// NewPGStoreWithDB allows injecting mocks for tests.
func NewPGStoreWithDB(db pgxDB) *PGStore {
	return &PGStore{db: db}
}

// Configured always reports true: a PGStore only exists when DATABASE_URL
// was set.
func (s *PGStore) Configured() bool { return s != nil }

// Insert writes a new appointment row.
func (s *PGStore) Insert(ctx context.Context, rec Record) (*Record, error) {
	rec.Time = PadTime(rec.Time)
	if rec.Status == "" {
		rec.Status = StatusScheduled
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rec.PatientID, rec.DoctorID, rec.Date, rec.Time, rec.Status)
	if err := row.Scan(&rec.ID); err != nil {
		return nil, fmt.Errorf("appointments: insert row: %w", err)
	}
	return &rec, nil
}

// UpdateDateTime rewrites date/time on the most recent scheduled row.
// Returns (nil, nil) when no scheduled row exists.
func (s *PGStore) UpdateDateTime(ctx context.Context, patientID, doctorID int, date, timeOfDay string) (*Record, error) {
	timeOfDay = PadTime(timeOfDay)
	if !dateRe.MatchString(date) {
		return nil, fmt.Errorf("appointments: invalid appointment_date %q, expected YYYY-MM-DD", date)
	}
	if !timeRe.MatchString(timeOfDay) {
		return nil, fmt.Errorf("appointments: invalid appointment_time %q, expected HH:MM:SS", timeOfDay)
	}

	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $3, appointment_time = $4
		WHERE id = (
			SELECT id FROM appointments
			WHERE patient_id = $1 AND doctor_id = $2 AND status = 'scheduled'
			ORDER BY appointment_date DESC, appointment_time DESC
			LIMIT 1
		)
		RETURNING id, patient_id, doctor_id, appointment_date, appointment_time, status
	`, patientID, doctorID, date, timeOfDay)

	return scanRecord(row)
}

// UpdateStatus sets the status of the most recent row for the pair.
func (s *PGStore) UpdateStatus(ctx context.Context, patientID, doctorID int, status string) (*Record, error) {
	if status != StatusScheduled && status != StatusRejected {
		return nil, fmt.Errorf("appointments: invalid status %q", status)
	}

	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = (
			SELECT id FROM appointments
			WHERE patient_id = $1 AND doctor_id = $2
			ORDER BY appointment_date DESC, appointment_time DESC
			LIMIT 1
		)
		RETURNING id, patient_id, doctor_id, appointment_date, appointment_time, status
	`, patientID, doctorID, status)

	return scanRecord(row)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.Date, &rec.Time, &rec.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: scan row: %w", err)
	}
	return &rec, nil
}

var _ Store = (*PGStore)(nil)
