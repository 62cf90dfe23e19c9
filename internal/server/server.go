package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shoplist/internal/auth"
	"github.com/dukerupert/shoplist/internal/handler"
	"github.com/dukerupert/shoplist/internal/middleware"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	hub         *ws.Hub
	authH       *handler.AuthHandler
	listH       *handler.ListHandler
	userStore   *store.UserStore
	tokens      *auth.TokenIssuer
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, tokens *auth.TokenIssuer, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	listStore := store.NewListStore(db)

	return &Server{
		hub:         hub,
		authH:       handler.NewAuthHandler(userStore, tokens, logger.With("component", "auth")),
		listH:       handler.NewListHandler(listStore, hub, logger.With("component", "lists")),
		userStore:   userStore,
		tokens:      tokens,
		rateLimiter: middleware.NewRateLimiter(authRateLimit, authRateWindow),
		logger:      logger,
	}
}

// RateLimiter returns the auth rate limiter so the caller can sweep it.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the change-feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /lists/public/{id}", s.listH.GetPublic)

	// Protected routes, wrapped with RequireBearer
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireBearer(s.tokens, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.NoStore(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Limit(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/me", s.authH.Me)

	mux.HandleFunc("GET /lists", s.listH.List)
	mux.HandleFunc("POST /lists", s.listH.Create)
	mux.HandleFunc("GET /lists/{id}", s.listH.Get)
	mux.HandleFunc("PUT /lists/{id}", s.listH.Update)
	mux.HandleFunc("DELETE /lists/{id}", s.listH.Delete)

	mux.HandleFunc("POST /lists/{id}/items", s.listH.AddItem)
	mux.HandleFunc("PUT /lists/{id}/items/{itemId}", s.listH.UpdateItem)
	mux.HandleFunc("DELETE /lists/{id}/items/{itemId}", s.listH.DeleteItem)
	mux.HandleFunc("PATCH /lists/{id}/items/{itemId}/toggle", s.listH.ToggleItem)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
