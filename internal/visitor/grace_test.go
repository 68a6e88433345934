package visitor

import (
	"testing"
	"time"
)

func TestPurgeAllowed(t *testing.T) {
	deletedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		deleted   bool
		deletedAt *time.Time
		now       time.Time
		want      bool
	}{
		{"just deleted", true, &deletedAt, deletedAt, true},
		{"inside window", true, &deletedAt, deletedAt.Add(5 * time.Minute), true},
		{"exactly ten minutes", true, &deletedAt, deletedAt.Add(10 * time.Minute), true},
		{"just past ten minutes", true, &deletedAt, deletedAt.Add(10*time.Minute + 6*time.Millisecond), false},
		{"long expired", true, &deletedAt, deletedAt.Add(24 * time.Hour), false},
		{"clock behind deletion", true, &deletedAt, deletedAt.Add(-time.Minute), true},
		{"not deleted", false, nil, deletedAt, false},
		{"deleted without time", true, nil, deletedAt, false},
		{"not deleted with stale time", false, &deletedAt, deletedAt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PurgeAllowed(tt.deleted, tt.deletedAt, tt.now); got != tt.want {
				t.Errorf("PurgeAllowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	deletedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if got := Remaining(true, &deletedAt, deletedAt.Add(4*time.Minute)); got != 6*time.Minute {
		t.Errorf("Remaining = %v, want 6m", got)
	}
	if got := Remaining(true, &deletedAt, deletedAt.Add(11*time.Minute)); got != 0 {
		t.Errorf("Remaining after window = %v, want 0", got)
	}
	if got := Remaining(true, &deletedAt, deletedAt.Add(-time.Minute)); got != GraceWindow {
		t.Errorf("Remaining with skewed clock = %v, want %v", got, GraceWindow)
	}
	if got := Remaining(false, nil, deletedAt); got != 0 {
		t.Errorf("Remaining for live record = %v, want 0", got)
	}
}
