package auth

import "context"

type contextKey struct{}

// Session is the authenticated caller attached to a request.
type Session struct {
	SessionID int64
	Token     string
	UserID    int64
	Username  string
	IsAdmin   bool
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func UserID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.UserID
}

func IsAdmin(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.IsAdmin
}

// CookieName is the cookie that carries the session token.
const CookieName = "visitorlog_session"
