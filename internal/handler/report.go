package handler

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/visitorlog/internal/model"
	"github.com/dukerupert/visitorlog/internal/stamp"
	"github.com/dukerupert/visitorlog/internal/store"
)

type ReportHandler struct {
	store  *store.VisitorStore
	now    func() time.Time
	logger *slog.Logger
}

func NewReportHandler(vs *store.VisitorStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{store: vs, now: time.Now, logger: logger}
}

// reportJSON is a report row. Missing exit, photo and deletion time are
// rendered as empty strings.
type reportJSON struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	TC                    string `json:"tc"`
	Entry                 string `json:"entry"`
	Meet                  string `json:"meet"`
	Host                  string `json:"host"`
	Active                int    `json:"active"`
	Exit                  string `json:"exit"`
	Photo                 string `json:"photo"`
	Deleted               int    `json:"deleted"`
	DeletedAt             string `json:"deleted_at"`
	PurgeAllowed          bool   `json:"purge_allowed"`
	PurgeRemainingSeconds int64  `json:"purge_remaining_seconds"`
}

func toReportJSON(e model.ReportEntry, loc *time.Location) reportJSON {
	return reportJSON{
		ID:                    e.ID,
		Name:                  e.Name,
		TC:                    e.NationalID,
		Entry:                 e.Entry.Format(loc),
		Meet:                  e.MeetingPurpose,
		Host:                  e.Host,
		Active:                flag(e.Active),
		Exit:                  stamp.FormatPtr(e.ExitAt, loc),
		Photo:                 e.Photo,
		Deleted:               flag(e.Deleted),
		DeletedAt:             stamp.FormatPtr(e.DeletedAt, loc),
		PurgeAllowed:          e.PurgeAllowed,
		PurgeRemainingSeconds: int64(math.Ceil(e.PurgeRemaining.Seconds())),
	}
}

// reportMonth picks the calendar month for scope=month. It starts from the
// current month, takes year and then month from the query, and stops at the
// first value that is not an integer. A month outside 1..12 falls back to the
// current one.
func reportMonth(yearParam, monthParam string, now time.Time) (int, time.Month) {
	year, month := now.Year(), int(now.Month())

	if yearParam != "" {
		y, err := strconv.Atoi(strings.TrimSpace(yearParam))
		if err != nil {
			return year, now.Month()
		}
		year = y
	}
	if monthParam != "" {
		if m, err := strconv.Atoi(strings.TrimSpace(monthParam)); err == nil {
			month = m
		}
	}

	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	return year, time.Month(month)
}

// List serves GET /api/reports?scope=all|month&q=&year=&month=&deleted=1.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := h.store.Location()

	filter := store.ReportFilter{
		Deleted: q.Get("deleted") == "1",
		Search:  q.Get("q"),
	}

	if q.Get("scope") == "month" {
		year, month := reportMonth(q.Get("year"), q.Get("month"), h.now().In(loc))
		from, to := stamp.MonthRange(year, month, loc)
		filter.From = &from
		filter.To = &to
	}

	entries, err := h.store.ListReport(filter)
	if err != nil {
		serverError(w, h.logger, "list report", err)
		return
	}

	out := make([]reportJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toReportJSON(e, loc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"visitors": out})
}
