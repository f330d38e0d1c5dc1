package entity

import "time"

// Enrollment joins a client to one plan definition. Enrollments are never
// deleted, only superseded by newer ones.
type Enrollment struct {
	ID        uint64
	ClientID  string
	PlanID    uint64
	CreatedAt time.Time
}
