package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/visitorlog/internal/model"
	"github.com/dukerupert/visitorlog/internal/stamp"
	"github.com/dukerupert/visitorlog/internal/store"
	"github.com/dukerupert/visitorlog/internal/websocket"
)

const (
	msgFieldsRequired     = "Tüm alanlar doldurulmalıdır."
	msgCreated            = "Kayıt başarılı"
	msgCheckoutNotFound   = "Ziyaretçi bulunamadı veya zaten çıkış yapmış."
	msgCheckedOut         = "Ziyaretçi çıkışı tamamlandı."
	msgDeleteNotFound     = "Kayıt bulunamadı veya zaten silinmiş."
	msgDeleted            = "Kayıt silindi."
	msgRecordNotFound     = "Kayıt bulunamadı."
	msgNotInDeleted       = "Önce silinenler listesinde olmalı."
	msgDeletionTimeBroken = "Silinme zamanı okunamadı."
	msgGraceExpired       = "10 dakikayı geçtiği için kalıcı silinemez."
	msgPurged             = "Kayıt kalıcı olarak silindi."
)

// Broadcaster receives visitor change events for connected screens.
type Broadcaster interface {
	Broadcast(ev websocket.Event)
}

type VisitorHandler struct {
	store  *store.VisitorStore
	hub    Broadcaster
	logger *slog.Logger
}

func NewVisitorHandler(vs *store.VisitorStore, hub Broadcaster, logger *slog.Logger) *VisitorHandler {
	return &VisitorHandler{store: vs, hub: hub, logger: logger}
}

func (h *VisitorHandler) broadcast(action string, id int64) {
	if h.hub == nil {
		return
	}
	active, deleted, err := h.store.Counts()
	if err != nil {
		// screens still refetch on the event; only the counters go stale
		h.logger.Warn("count visitors for broadcast", "error", err)
	}
	h.hub.Broadcast(websocket.VisitorEvent(action, id, active, deleted))
}

type visitorRequest struct {
	Name  string `json:"name"`
	TC    string `json:"tc"`
	Entry string `json:"entry"`
	Meet  string `json:"meet"`
	Host  string `json:"host"`
	Photo string `json:"photo"`
}

// visitorJSON is the wire form of a visitor on the active board. Missing
// exit and deletion times are null.
type visitorJSON struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	TC        string  `json:"tc"`
	Entry     string  `json:"entry"`
	Meet      string  `json:"meet"`
	Host      string  `json:"host"`
	Active    int     `json:"active"`
	Exit      *string `json:"exit"`
	Photo     string  `json:"photo"`
	Deleted   int     `json:"deleted"`
	DeletedAt *string `json:"deleted_at"`
	CreatedAt string  `json:"created_at"`
}

func optionalStamp(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := stamp.Format(*t, loc)
	return &s
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toVisitorJSON(v model.Visitor, loc *time.Location) visitorJSON {
	return visitorJSON{
		ID:        v.ID,
		Name:      v.Name,
		TC:        v.NationalID,
		Entry:     v.Entry.Format(loc),
		Meet:      v.MeetingPurpose,
		Host:      v.Host,
		Active:    flag(v.Active),
		Exit:      optionalStamp(v.ExitAt, loc),
		Photo:     v.Photo,
		Deleted:   flag(v.Deleted),
		DeletedAt: optionalStamp(v.DeletedAt, loc),
		CreatedAt: stamp.Format(v.CreatedAt, loc),
	}
}

func (h *VisitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgFieldsRequired)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Entry = strings.TrimSpace(req.Entry)
	req.Meet = strings.TrimSpace(req.Meet)
	req.Host = strings.TrimSpace(req.Host)
	if req.Name == "" || req.Entry == "" || req.Meet == "" || req.Host == "" {
		writeMessage(w, http.StatusBadRequest, msgFieldsRequired)
		return
	}

	v, err := h.store.Create(store.NewVisitor{
		Name:           req.Name,
		NationalID:     strings.TrimSpace(req.TC),
		Entry:          stamp.Normalize(req.Entry, h.store.Location()),
		MeetingPurpose: req.Meet,
		Host:           req.Host,
		Photo:          strings.TrimSpace(req.Photo),
	})
	if err != nil {
		serverError(w, h.logger, "create visitor", err)
		return
	}

	h.logger.Info("visitor signed in", "visitor_id", v.ID)
	h.broadcast("created", v.ID)

	writeJSON(w, http.StatusOK, map[string]any{"message": msgCreated, "id": v.ID})
}

func (h *VisitorHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgCheckoutNotFound)
		return
	}

	if err := h.store.Checkout(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgCheckoutNotFound)
			return
		}
		serverError(w, h.logger, "checkout visitor", err)
		return
	}

	h.broadcast("checked_out", id)
	writeMessage(w, http.StatusOK, msgCheckedOut)
}

func (h *VisitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgDeleteNotFound)
		return
	}

	if err := h.store.SoftDelete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgDeleteNotFound)
			return
		}
		serverError(w, h.logger, "soft delete visitor", err)
		return
	}

	h.logger.Info("visitor record deleted", "visitor_id", id)
	h.broadcast("deleted", id)
	writeMessage(w, http.StatusOK, msgDeleted)
}

func (h *VisitorHandler) Purge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgRecordNotFound)
		return
	}

	err := h.store.Purge(id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, msgRecordNotFound)
		return
	case errors.Is(err, store.ErrNotDeleted):
		writeMessage(w, http.StatusBadRequest, msgNotInDeleted)
		return
	case errors.Is(err, store.ErrDeletionTimeUnknown):
		writeMessage(w, http.StatusBadRequest, msgDeletionTimeBroken)
		return
	case errors.Is(err, store.ErrGraceExpired):
		writeMessage(w, http.StatusBadRequest, msgGraceExpired)
		return
	default:
		serverError(w, h.logger, "purge visitor", err)
		return
	}

	h.logger.Info("visitor record purged", "visitor_id", id)
	h.broadcast("purged", id)
	writeMessage(w, http.StatusOK, msgPurged)
}

func (h *VisitorHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.store.ListActive()
	if err != nil {
		serverError(w, h.logger, "list active visitors", err)
		return
	}

	loc := h.store.Location()
	out := make([]visitorJSON, 0, len(visitors))
	for _, v := range visitors {
		out = append(out, toVisitorJSON(v, loc))
	}
	writeJSON(w, http.StatusOK, out)
}
