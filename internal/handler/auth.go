package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/visitorlog/internal/account"
	"github.com/dukerupert/visitorlog/internal/auth"
	"github.com/dukerupert/visitorlog/internal/store"
)

const (
	msgCredentialsRequired = "Kullanıcı adı ve şifre gereklidir."
	msgInvalidCredentials  = "Kullanıcı adı veya şifre hatalı."
	msgLoggedIn            = "Giriş başarılı"
	msgLoggedOut           = "Çıkış yapıldı."
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	user, err := h.userStore.GetByUsername(req.Username)
	if err != nil {
		serverError(w, h.logger, "login lookup", err)
		return
	}
	if !account.CheckPassword(user, req.Password) {
		h.logger.Warn("failed login", "username", req.Username)
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	// A client logging in again drops its previous session.
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessionStore.DeleteByToken(cookie.Value); err != nil {
			h.logger.Error("delete previous session", "error", err)
		}
	}

	sess, err := h.sessionStore.Create(user)
	if err != nil {
		serverError(w, h.logger, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("user logged in", "user_id", user.ID, "username", user.Username, "is_admin", user.IsAdmin)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  msgLoggedIn,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessionStore.DeleteByToken(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeMessage(w, http.StatusOK, msgLoggedOut)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"logged_in": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logged_in": true,
		"username":  sess.Username,
		"is_admin":  sess.IsAdmin,
	})
}
