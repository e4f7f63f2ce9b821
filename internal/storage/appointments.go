// Package storage holds the pgx repositories. The UNIQUE index on
// appointments.scheduled_at is the authoritative no-double-booking guard;
// every state change writes its domain event to the outbox in the same
// transaction.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/belagenda/belagenda/internal/booking"
	"github.com/belagenda/belagenda/internal/model"
	"github.com/belagenda/belagenda/internal/outbox"
	"github.com/belagenda/belagenda/internal/reminder"
	"github.com/belagenda/belagenda/libs/db"
)

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventReminderRecorded     = "reminder.attempt.recorded.v1"
)

type AppointmentRepository struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	timezone string
}

// NewAppointmentRepository returns the repository. timezone is the IANA name
// used to group scheduled_at values into calendar dates.
func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository, timezone string) *AppointmentRepository {
	if timezone == "" {
		timezone = "UTC"
	}
	return &AppointmentRepository{pool: pool, outbox: outboxRepo, timezone: timezone}
}

var _ booking.Store = (*AppointmentRepository)(nil)
var _ reminder.Store = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Insert(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, client_name, phone, procedures, scheduled_at, notes, reminder_sent)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING created_at
	`, appt.ID, appt.ClientName, appt.Phone, appt.Procedures, appt.ScheduledAt, appt.Notes).Scan(&appt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := r.insertEvent(ctx, tx, EventAppointmentBooked, *appt, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) ExistsAtSlot(ctx context.Context, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE scheduled_at = $1)
	`, at).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, booking.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, selectAppointment+` WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, id string, upd model.AppointmentUpdate) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, booking.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, selectAppointment+` WHERE id = $1 FOR UPDATE`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}

	if upd.ClientName != nil {
		appt.ClientName = *upd.ClientName
	}
	if upd.Phone != nil {
		appt.Phone = *upd.Phone
	}
	if upd.Procedures != nil {
		appt.Procedures = *upd.Procedures
	}
	if upd.ScheduledAt != nil {
		appt.ScheduledAt = *upd.ScheduledAt
	}
	if upd.Notes != nil {
		appt.Notes = *upd.Notes
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET client_name = $2, phone = $3, procedures = $4, scheduled_at = $5, notes = $6
		WHERE id = $1
	`, id, appt.ClientName, appt.Phone, appt.Procedures, appt.ScheduledAt, appt.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Appointment{}, booking.ErrSlotTaken
		}
		return model.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return booking.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING id, client_name, phone, procedures, scheduled_at, notes, reminder_sent, created_at
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.ErrNotFound
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	if err := r.insertEvent(ctx, tx, EventAppointmentCancelled, appt, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]model.Appointment, error) {
	return r.list(ctx, selectAppointment+` ORDER BY scheduled_at DESC`)
}

func (r *AppointmentRepository) ListRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return r.list(ctx, selectAppointment+` WHERE scheduled_at >= $1 AND scheduled_at < $2 ORDER BY scheduled_at ASC`, from, to)
}

func (r *AppointmentRepository) DistinctDates(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT to_char(scheduled_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day
		FROM appointments
		ORDER BY day
	`, r.timezone)
	if err != nil {
		return nil, fmt.Errorf("distinct dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *AppointmentRepository) ListPendingInWindow(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return r.list(ctx, selectAppointment+`
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND reminder_sent = FALSE
		ORDER BY scheduled_at ASC`, from, to)
}

// MarkReminderAttempted flips reminder_sent to true (never back) and records
// the attempt outcome as an outbox event, in one transaction.
func (r *AppointmentRepository) MarkReminderAttempted(ctx context.Context, id string, outcome reminder.Outcome) error {
	if _, err := uuid.Parse(id); err != nil {
		return booking.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE
		WHERE id = $1
		RETURNING id, client_name, phone, procedures, scheduled_at, notes, reminder_sent, created_at
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.ErrNotFound
		}
		return fmt.Errorf("mark reminder attempted: %w", err)
	}

	extra := map[string]any{"outcome": outcome.String()}
	if err := r.insertEvent(ctx, tx, EventReminderRecorded, appt, extra); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const selectAppointment = `
	SELECT id, client_name, phone, procedures, scheduled_at, notes, reminder_sent, created_at
	FROM appointments`

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ClientName,
		&appt.Phone,
		&appt.Procedures,
		&appt.ScheduledAt,
		&appt.Notes,
		&appt.ReminderSent,
		&appt.CreatedAt,
	)
	return appt, err
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, extra map[string]any) error {
	if r.outbox == nil {
		return nil
	}
	body := map[string]any{
		"appointment_id": appt.ID,
		"client_name":    appt.ClientName,
		"phone":          appt.Phone,
		"procedures":     appt.Procedures,
		"scheduled_at":   appt.ScheduledAt.UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
