package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/visitorlog/internal/account"
	"github.com/dukerupert/visitorlog/internal/auth"
	"github.com/dukerupert/visitorlog/internal/model"
	"github.com/dukerupert/visitorlog/internal/stamp"
	"github.com/dukerupert/visitorlog/internal/store"
)

const (
	msgPasswordTooShort  = "Şifre en az 8 karakter olmalıdır."
	msgUsernameTaken     = "Bu kullanıcı adı zaten kullanılıyor."
	msgUserCreated       = "Kullanıcı oluşturuldu."
	msgTargetRequired    = "Silinecek kullanıcı belirtilmelidir."
	msgAdminPassRequired = "Yönetici şifresi gereklidir."
	msgAdminPassWrong    = "Yönetici şifresi hatalı."
	msgUserNotFound      = "Kullanıcı bulunamadı."
	msgAdminUndeletable  = "Yönetici hesapları silinemez."
	msgUserDeleted       = "Kullanıcı silindi."
)

type UserHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	loc          *time.Location
	logger       *slog.Logger
}

func NewUserHandler(us *store.UserStore, ss *store.SessionStore, loc *time.Location, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, sessionStore: ss, loc: loc, logger: logger}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	switch err := account.ValidateNew(req.Username, req.Password); {
	case errors.Is(err, account.ErrMissingCredentials):
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	case errors.Is(err, account.ErrPasswordTooShort):
		writeMessage(w, http.StatusBadRequest, msgPasswordTooShort)
		return
	}

	exists, err := h.userStore.UsernameExists(req.Username)
	if err != nil {
		serverError(w, h.logger, "check username", err)
		return
	}
	if exists {
		writeMessage(w, http.StatusConflict, msgUsernameTaken)
		return
	}

	hash, err := account.HashPassword(req.Password)
	if err != nil {
		serverError(w, h.logger, "hash password", err)
		return
	}

	user, err := h.userStore.Create(req.Username, hash, false)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeMessage(w, http.StatusConflict, msgUsernameTaken)
			return
		}
		serverError(w, h.logger, "create user", err)
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "username", user.Username, "by", auth.UserID(r.Context()))
	writeMessage(w, http.StatusCreated, msgUserCreated)
}

type userJSON struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.ListNonAdmin()
	if err != nil {
		serverError(w, h.logger, "list users", err)
		return
	}

	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON{
			ID:        u.ID,
			Username:  u.Username,
			IsAdmin:   u.IsAdmin,
			CreatedAt: stamp.Format(u.CreatedAt, h.loc),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// targetID accepts a user id sent as a JSON number or a numeric string.
type targetID int64

func (t *targetID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*t = targetID(n)
	return nil
}

type deleteUserRequest struct {
	UserID        targetID `json:"user_id"`
	Username      string   `json:"username"`
	AdminPassword string   `json:"admin_password"`
}

// Delete removes a non-admin account. The caller re-enters their own password
// on every call.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgTargetRequired)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if req.UserID <= 0 && req.Username == "" {
		writeMessage(w, http.StatusBadRequest, msgTargetRequired)
		return
	}
	if req.AdminPassword == "" {
		writeMessage(w, http.StatusBadRequest, msgAdminPassRequired)
		return
	}

	caller, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		serverError(w, h.logger, "load caller", err)
		return
	}
	if !account.CheckPassword(caller, req.AdminPassword) {
		h.logger.Warn("user delete with wrong admin password", "caller_id", auth.UserID(r.Context()))
		writeMessage(w, http.StatusUnauthorized, msgAdminPassWrong)
		return
	}

	target, err := h.lookupTarget(req)
	if err != nil {
		serverError(w, h.logger, "load delete target", err)
		return
	}
	if target == nil {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	if target.IsAdmin {
		writeMessage(w, http.StatusForbidden, msgAdminUndeletable)
		return
	}

	if err := h.sessionStore.DeleteByUserID(target.ID); err != nil {
		serverError(w, h.logger, "delete user sessions", err)
		return
	}
	if err := h.userStore.Delete(target.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		serverError(w, h.logger, "delete user", err)
		return
	}

	h.logger.Info("user deleted", "user_id", target.ID, "username", target.Username, "by", caller.ID)
	writeMessage(w, http.StatusOK, msgUserDeleted)
}

func (h *UserHandler) lookupTarget(req deleteUserRequest) (*model.User, error) {
	if req.UserID > 0 {
		return h.userStore.GetByID(int64(req.UserID))
	}
	return h.userStore.GetByUsername(req.Username)
}
