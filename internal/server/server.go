package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/visitorlog/internal/config"
	"github.com/dukerupert/visitorlog/internal/handler"
	"github.com/dukerupert/visitorlog/internal/middleware"
	"github.com/dukerupert/visitorlog/internal/store"
	ws "github.com/dukerupert/visitorlog/internal/websocket"
	"github.com/dukerupert/visitorlog/web"
)

type Server struct {
	hub          *ws.Hub
	visitorH     *handler.VisitorHandler
	reportH      *handler.ReportHandler
	authH        *handler.AuthHandler
	userH        *handler.UserHandler
	visitorStore *store.VisitorStore
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	wsOrigins    []string
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	visitorStore := store.NewVisitorStore(db, cfg.Location)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	return &Server{
		hub:          hub,
		visitorH:     handler.NewVisitorHandler(visitorStore, hub, logger.With("component", "visitor")),
		reportH:      handler.NewReportHandler(visitorStore, logger.With("component", "report")),
		authH:        handler.NewAuthHandler(userStore, sessionStore, cfg.CookieSecure, logger.With("component", "auth")),
		userH:        handler.NewUserHandler(userStore, sessionStore, cfg.Location, logger.With("component", "user")),
		visitorStore: visitorStore,
		userStore:    userStore,
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute),
		wsOrigins:    cfg.WSOrigins,
		logger:       logger,
	}
}

// Hub returns the live board hub so shutdown can close its clients.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) VisitorStore() *store.VisitorStore {
	return s.visitorStore
}

func (s *Server) UserStore() *store.UserStore {
	return s.userStore
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Visitor log
	mux.HandleFunc("POST /api/visitors", s.visitorH.Create)
	mux.HandleFunc("GET /api/visitors/active", s.visitorH.ListActive)
	mux.HandleFunc("POST /api/visitors/{id}/checkout", s.visitorH.Checkout)
	mux.HandleFunc("POST /api/visitors/{id}/delete", s.visitorH.Delete)
	mux.HandleFunc("POST /api/visitors/{id}/purge", s.visitorH.Purge)
	mux.HandleFunc("GET /api/reports", s.reportH.List)
	mux.HandleFunc("GET /api/ping", handler.Ping)

	// Sessions
	mux.Handle("POST /api/login", middleware.RateLimit(s.rateLimiter)(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Account administration
	mux.Handle("POST /api/users", middleware.RequireAdmin(http.HandlerFunc(s.userH.Create)))
	mux.Handle("GET /api/users/list", middleware.RequireAdmin(http.HandlerFunc(s.userH.List)))
	mux.Handle("POST /api/users/delete", middleware.RequireAdmin(http.HandlerFunc(s.userH.Delete)))

	// Live board
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins))

	// Front end
	static := web.Static()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})

	var h http.Handler = mux
	h = middleware.LoadSession(s.sessionStore, s.logger.With("component", "session"))(h)
	h = middleware.NoStore(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return h
}
