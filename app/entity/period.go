package entity

import "time"

// Period is a concrete access window owned by an enrollment. At most one
// period across all of a client's enrollments is current at any moment.
// IsTrial is copied from the plan at creation time and never changes, even
// if the plan definition is edited later.
type Period struct {
	ID           uint64
	EnrollmentID uint64
	StartsAt     time.Time
	ExpiresAt    time.Time
	IsCurrent    bool
	IsTrial      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reactivatable reports whether the period was superseded before it actually
// expired and can therefore be made current again without a new payment.
func (p *Period) Reactivatable(now time.Time) bool {
	return !p.IsCurrent && !p.ExpiresAt.Before(now)
}
