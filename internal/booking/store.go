package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound  = errors.New("booking: appointment not found")
	ErrSlotTaken = errors.New("booking: slot already booked")
	ErrInvalid   = errors.New("booking: invalid appointment")
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment is one booked slot for a caller.
type Appointment struct {
	ID            string
	ContactNumber string
	UserName      string
	SlotTime      string
	Details       string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store persists appointments in SQLite. The confirmed-slot unique index
// backstops the one-confirmed-appointment-per-slot invariant even when
// two sessions race the availability check.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("booking: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("booking: ping %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msgf("booking.Open path=%q", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAppointment books a slot for a contact. A confirmed appointment
// already holding the slot yields ErrSlotTaken.
func (s *Store) CreateAppointment(ctx context.Context, contact, userName, slot, details string) (Appointment, error) {
	contact = strings.TrimSpace(contact)
	slot = strings.TrimSpace(slot)
	if contact == "" || slot == "" {
		return Appointment{}, fmt.Errorf("%w: contact and slot required", ErrInvalid)
	}

	now := time.Now().UTC()
	appt := Appointment{
		ID:            uuid.NewString(),
		ContactNumber: contact,
		UserName:      strings.TrimSpace(userName),
		SlotTime:      slot,
		Details:       strings.TrimSpace(details),
		Status:        StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO appointments (id, contact_number, user_name, slot_time, details, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, appt.ID, appt.ContactNumber, appt.UserName, appt.SlotTime, appt.Details, appt.Status, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return Appointment{}, fmt.Errorf("%w: %q", ErrSlotTaken, slot)
		}
		return Appointment{}, fmt.Errorf("booking: create appointment: %w", err)
	}
	return appt, nil
}

// AppointmentsByContact returns every appointment for a contact, oldest
// first, regardless of status.
func (s *Store) AppointmentsByContact(ctx context.Context, contact string) ([]Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, contact_number, user_name, slot_time, details, status, created_at, updated_at
FROM appointments
WHERE contact_number = ?
ORDER BY created_at, id
`, strings.TrimSpace(contact))
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(&appt.ID, &appt.ContactNumber, &appt.UserName, &appt.SlotTime, &appt.Details, &appt.Status, &appt.CreatedAt, &appt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	return appointments, nil
}

// ConfirmedBySlot returns the contact's confirmed appointment at slot.
func (s *Store) ConfirmedBySlot(ctx context.Context, contact, slot string) (Appointment, error) {
	var appt Appointment
	err := s.db.QueryRowContext(ctx, `
SELECT id, contact_number, user_name, slot_time, details, status, created_at, updated_at
FROM appointments
WHERE contact_number = ? AND slot_time = ? AND status = ?
`, strings.TrimSpace(contact), strings.TrimSpace(slot), StatusConfirmed).
		Scan(&appt.ID, &appt.ContactNumber, &appt.UserName, &appt.SlotTime, &appt.Details, &appt.Status, &appt.CreatedAt, &appt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, fmt.Errorf("%w: slot %q", ErrNotFound, slot)
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("booking: find appointment: %w", err)
	}
	return appt, nil
}

// CancelAppointment cancels the contact's confirmed appointment at slot,
// freeing the slot for other callers.
func (s *Store) CancelAppointment(ctx context.Context, contact, slot string) (Appointment, error) {
	appt, err := s.ConfirmedBySlot(ctx, contact, slot)
	if err != nil {
		return Appointment{}, err
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?
`, StatusCancelled, now, appt.ID); err != nil {
		return Appointment{}, fmt.Errorf("booking: cancel appointment: %w", err)
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = now
	return appt, nil
}

// MoveAppointment reslots the contact's confirmed appointment from
// fromSlot to toSlot. The whole move is one transaction; losing a race
// for toSlot yields ErrSlotTaken and changes nothing.
func (s *Store) MoveAppointment(ctx context.Context, contact, fromSlot, toSlot string) (Appointment, error) {
	fromSlot = strings.TrimSpace(fromSlot)
	toSlot = strings.TrimSpace(toSlot)
	if toSlot == "" || toSlot == fromSlot {
		return Appointment{}, fmt.Errorf("%w: target slot %q", ErrInvalid, toSlot)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Appointment{}, fmt.Errorf("booking: begin move: %w", err)
	}
	defer tx.Rollback()

	var appt Appointment
	err = tx.QueryRowContext(ctx, `
SELECT id, contact_number, user_name, slot_time, details, status, created_at, updated_at
FROM appointments
WHERE contact_number = ? AND slot_time = ? AND status = ?
`, strings.TrimSpace(contact), fromSlot, StatusConfirmed).
		Scan(&appt.ID, &appt.ContactNumber, &appt.UserName, &appt.SlotTime, &appt.Details, &appt.Status, &appt.CreatedAt, &appt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, fmt.Errorf("%w: slot %q", ErrNotFound, fromSlot)
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("booking: find appointment: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE appointments SET slot_time = ?, updated_at = ? WHERE id = ?
`, toSlot, now, appt.ID); err != nil {
		if isConstraintErr(err) {
			return Appointment{}, fmt.Errorf("%w: %q", ErrSlotTaken, toSlot)
		}
		return Appointment{}, fmt.Errorf("booking: move appointment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Appointment{}, fmt.Errorf("booking: commit move: %w", err)
	}
	appt.SlotTime = toSlot
	appt.UpdatedAt = now
	return appt, nil
}

// SlotAvailable reports whether no confirmed appointment holds slot.
func (s *Store) SlotAvailable(ctx context.Context, slot string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM appointments WHERE slot_time = ? AND status = ?
`, strings.TrimSpace(slot), StatusConfirmed).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("booking: check slot: %w", err)
	}
	return count == 0, nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
