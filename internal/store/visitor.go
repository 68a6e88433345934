package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/visitorlog/internal/model"
	"github.com/dukerupert/visitorlog/internal/stamp"
	"github.com/dukerupert/visitorlog/internal/visitor"
)

type VisitorStore struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// NewVisitorStore returns a store that displays and filters timestamps in loc.
func NewVisitorStore(db *sql.DB, loc *time.Location) *VisitorStore {
	if loc == nil {
		loc = time.Local
	}
	return &VisitorStore{db: db, loc: loc, now: time.Now}
}

// SetClock replaces the time source used for checkout, delete and purge.
func (s *VisitorStore) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the display location.
func (s *VisitorStore) Location() *time.Location {
	return s.loc
}

func (s *VisitorStore) clock() time.Time {
	return s.now().UTC()
}

// NewVisitor holds the fields supplied at sign-in.
type NewVisitor struct {
	Name           string
	NationalID     string
	Entry          stamp.Stamp
	MeetingPurpose string
	Host           string
	Photo          string
}

func scanVisitor(scanner interface{ Scan(...any) error }) (*model.Visitor, error) {
	var v model.Visitor
	var entryAt, exitAt, deletedAt sql.NullTime
	var active, deleted int

	err := scanner.Scan(
		&v.ID, &v.Name, &v.NationalID, &entryAt, &v.Entry.Raw,
		&v.MeetingPurpose, &v.Host, &active, &exitAt, &v.Photo,
		&deleted, &deletedAt, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Active = active != 0
	v.Deleted = deleted != 0
	if entryAt.Valid {
		v.Entry.Time = entryAt.Time
	}
	if exitAt.Valid {
		v.ExitAt = &exitAt.Time
	}
	if deletedAt.Valid {
		v.DeletedAt = &deletedAt.Time
	}
	return &v, nil
}

const visitorCols = `id, name, national_id, entry_at, entry_raw, meeting_purpose, host, active, exit_at, photo, deleted, deleted_at, created_at`

// Create signs a visitor in and returns the new record.
func (s *VisitorStore) Create(nv NewVisitor) (*model.Visitor, error) {
	var entryAt sql.NullTime
	if nv.Entry.Parsed() {
		entryAt = sql.NullTime{Time: nv.Entry.Time.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO visitors (name, national_id, entry_at, entry_raw, meeting_purpose, host, active, photo, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		nv.Name, nv.NationalID, entryAt, nv.Entry.Raw, nv.MeetingPurpose, nv.Host, nv.Photo, s.clock(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert visitor: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *VisitorStore) GetByID(id int64) (*model.Visitor, error) {
	row := s.db.QueryRow(`SELECT `+visitorCols+` FROM visitors WHERE id = ?`, id)
	v, err := scanVisitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return v, nil
}

// Checkout signs an active, non-deleted visitor out. A missing id, an
// already checked-out visitor and a deleted record all yield ErrNotFound.
func (s *VisitorStore) Checkout(id int64) error {
	result, err := s.db.Exec(
		`UPDATE visitors SET active = 0, exit_at = ? WHERE id = ? AND active = 1 AND deleted = 0`,
		s.clock(), id,
	)
	if err != nil {
		return fmt.Errorf("checkout visitor: %w", err)
	}
	return requireAffected(result, "checkout visitor")
}

// SoftDelete hides a record and starts its purge grace window. The record is
// forced inactive whether or not it was checked out.
func (s *VisitorStore) SoftDelete(id int64) error {
	result, err := s.db.Exec(
		`UPDATE visitors SET deleted = 1, deleted_at = ?, active = 0 WHERE id = ? AND deleted = 0`,
		s.clock(), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete visitor: %w", err)
	}
	return requireAffected(result, "soft delete visitor")
}

// Purge permanently removes a soft-deleted record while its grace window is
// open. The delete itself is unconditional: the last check wins.
func (s *VisitorStore) Purge(id int64) error {
	var deleted int
	var deletedAt sql.NullTime
	err := s.db.QueryRow(`SELECT deleted, deleted_at FROM visitors WHERE id = ?`, id).Scan(&deleted, &deletedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("purge visitor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("purge visitor: %w", err)
	}

	if deleted != 1 {
		return fmt.Errorf("purge visitor %d: %w", id, ErrNotDeleted)
	}
	if !deletedAt.Valid || deletedAt.Time.IsZero() {
		return fmt.Errorf("purge visitor %d: %w", id, ErrDeletionTimeUnknown)
	}
	if !visitor.PurgeAllowed(true, &deletedAt.Time, s.clock()) {
		return fmt.Errorf("purge visitor %d: %w", id, ErrGraceExpired)
	}

	if _, err := s.db.Exec(`DELETE FROM visitors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	return nil
}

// ListActive returns visitors currently on the premises in store order.
func (s *VisitorStore) ListActive() ([]model.Visitor, error) {
	rows, err := s.db.Query(`SELECT ` + visitorCols + ` FROM visitors WHERE active = 1 AND deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("list active visitors: %w", err)
	}
	defer rows.Close()

	var visitors []model.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, *v)
	}
	return visitors, rows.Err()
}

// ReportFilter selects report rows. Deleted picks exactly one partition.
// From/To, when set, bound entry_at as [From, To).
type ReportFilter struct {
	Deleted bool
	From    *time.Time
	To      *time.Time
	Search  string
}

// ListReport returns visitors matching f, newest first, each with its purge
// eligibility at the current time.
func (s *VisitorStore) ListReport(f ReportFilter) ([]model.ReportEntry, error) {
	query := `SELECT ` + visitorCols + ` FROM visitors WHERE deleted = ?`
	args := []any{boolToInt(f.Deleted)}

	if f.From != nil {
		query += ` AND entry_at >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND entry_at < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list report: %w", err)
	}
	defer rows.Close()

	now := s.clock()
	needle := strings.ToLower(strings.TrimSpace(f.Search))

	var entries []model.ReportEntry
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		if needle != "" && !s.matches(v, needle) {
			continue
		}
		entries = append(entries, model.ReportEntry{
			Visitor:        *v,
			PurgeAllowed:   visitor.PurgeAllowed(v.Deleted, v.DeletedAt, now),
			PurgeRemaining: visitor.Remaining(v.Deleted, v.DeletedAt, now),
		})
	}
	return entries, rows.Err()
}

// matches reports whether needle (already lower-cased) occurs in any
// searchable field, comparing timestamps in their displayed form.
func (s *VisitorStore) matches(v *model.Visitor, needle string) bool {
	fields := []string{
		v.Name,
		v.MeetingPurpose,
		v.Host,
		v.NationalID,
		v.Entry.Format(s.loc),
		stamp.FormatPtr(v.ExitAt, s.loc),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Counts returns how many visitors are on site and how many records sit in
// the deleted partition.
func (s *VisitorStore) Counts() (active, deleted int64, err error) {
	err = s.db.QueryRow(
		`SELECT
		   COALESCE(SUM(CASE WHEN active = 1 AND deleted = 0 THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN deleted = 1 THEN 1 ELSE 0 END), 0)
		 FROM visitors`,
	).Scan(&active, &deleted)
	if err != nil {
		return 0, 0, fmt.Errorf("count visitors: %w", err)
	}
	return active, deleted, nil
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
