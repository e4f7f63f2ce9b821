package model

import "time"

// Procedure is a catalog entry. Appointments reference procedures by name
// only; deleting a procedure does not touch existing appointments.
type Procedure struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
