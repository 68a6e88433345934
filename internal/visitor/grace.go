package visitor

import "time"

// GraceWindow is how long after a soft delete a record may still be purged.
const GraceWindow = 10 * time.Minute

// PurgeAllowed reports whether a record in the given delete state may be
// permanently removed at now. The boundary is inclusive.
func PurgeAllowed(deleted bool, deletedAt *time.Time, now time.Time) bool {
	if !deleted || deletedAt == nil {
		return false
	}
	return now.Sub(*deletedAt) <= GraceWindow
}

// Remaining returns the time left in the grace window, or zero once it has
// closed or when the record is not deleted.
func Remaining(deleted bool, deletedAt *time.Time, now time.Time) time.Duration {
	if !PurgeAllowed(deleted, deletedAt, now) {
		return 0
	}
	left := GraceWindow - now.Sub(*deletedAt)
	if left > GraceWindow {
		return GraceWindow
	}
	return left
}
