package model

import (
	"time"

	"github.com/dukerupert/visitorlog/internal/stamp"
)

// Visitor is one sign-in record at the front desk.
type Visitor struct {
	ID             int64
	Name           string
	NationalID     string
	Entry          stamp.Stamp
	MeetingPurpose string
	Host           string
	Active         bool
	ExitAt         *time.Time
	Photo          string
	Deleted        bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

// ReportEntry is a visitor row in a report, with purge eligibility computed
// at read time.
type ReportEntry struct {
	Visitor
	PurgeAllowed   bool
	PurgeRemaining time.Duration
}
