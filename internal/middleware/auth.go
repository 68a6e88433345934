package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/visitorlog/internal/auth"
	"github.com/dukerupert/visitorlog/internal/store"
)

// LoadSession attaches the caller's session to the request context when the
// session cookie names a live session. Requests without one pass through
// unchanged; routes that need a login wrap themselves in RequireAuth.
func LoadSession(sessionStore *store.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil {
				logger.Error("load session", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithSession(r.Context(), auth.Session{
				SessionID: sess.ID,
				Token:     sess.Token,
				UserID:    sess.UserID,
				Username:  sess.Username,
				IsAdmin:   sess.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a session with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeMessage(w, http.StatusUnauthorized, "Giriş yapmanız gerekiyor.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without a session with 401 and non-admin
// callers with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeMessage(w, http.StatusForbidden, "Bu işlem için yönetici yetkisi gerekiyor.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
