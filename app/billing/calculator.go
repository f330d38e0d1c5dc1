// Package billing holds the pure period arithmetic shared by selection
// previews and activation validation.
package billing

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ComputeExpiration returns the expiration for a period starting at start
// with the given duration. The arithmetic is calendar-day based in start's
// own location rather than a flat 24h multiplication, so a period spanning
// a daylight-saving transition still ends on the expected calendar day.
func ComputeExpiration(start time.Time, durationDays int32) time.Time {
	return start.AddDate(0, 0, int(durationDays))
}

// SameInstantUTC compares two timestamps normalized to UTC. Storage-level
// comparisons go through here to keep location differences out of equality.
func SameInstantUTC(a, b time.Time) bool {
	return a.UTC().Equal(b.UTC())
}

// ValidateExpiration checks a stored period's expiration against what the
// calculator would produce. A mismatch is logged, not enforced: the store
// of record wins, the log line exists to surface drift.
func ValidateExpiration(logger logrus.FieldLogger, startsAt, expiresAt time.Time, durationDays int32) bool {
	expected := ComputeExpiration(startsAt, durationDays)
	if SameInstantUTC(expected, expiresAt) {
		return true
	}
	logger.WithFields(logrus.Fields{
		"starts_at":     startsAt.UTC().Format(time.RFC3339),
		"expires_at":    expiresAt.UTC().Format(time.RFC3339),
		"expected":      expected.UTC().Format(time.RFC3339),
		"duration_days": durationDays,
	}).Warn("period_expiration_mismatch")
	return false
}
