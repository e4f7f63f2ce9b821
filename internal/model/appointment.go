package model

import "time"

// Appointment is a single point-in-time booking slot. ScheduledAt is unique
// across all appointments: the calendar has one chair.
type Appointment struct {
	ID           string
	ClientName   string
	Phone        string
	Procedures   []string
	ScheduledAt  time.Time
	Notes        string
	ReminderSent bool
	CreatedAt    time.Time
}

// AppointmentUpdate is a partial update. Nil fields are left untouched.
// ID, CreatedAt and ReminderSent are never updatable.
type AppointmentUpdate struct {
	ClientName  *string
	Phone       *string
	Procedures  *[]string
	ScheduledAt *time.Time
	Notes       *string
}

// Empty reports whether the update would change nothing.
func (u AppointmentUpdate) Empty() bool {
	return u.ClientName == nil && u.Phone == nil && u.Procedures == nil &&
		u.ScheduledAt == nil && u.Notes == nil
}
