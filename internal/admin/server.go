package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/germesbot/germes/internal/service"
)

// Server is the operator console. It writes the same tables the bot
// reads, so every mutation goes through the shared service layer.
type Server struct {
	addr     string
	username string
	password string
	log      *slog.Logger
	db       *sql.DB
	users    *service.UserService
	access   *service.AccessService
	credits  *service.CreditService
	router   *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, db *sql.DB, users *service.UserService, access *service.AccessService, credits *service.CreditService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		username: username,
		password: password,
		log:      log,
		db:       db,
		users:    users,
		access:   access,
		credits:  credits,
		router:   r,
	}
	r.Get("/health", s.handleHealth)
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/", s.handleOverview)
		protected.Post("/allow", s.handleAllow)
		protected.Post("/disable", s.handleDisable)
		protected.Post("/set_balance", s.handleSetBalance)
		protected.Post("/reset_balance/{user_id}", s.handleResetBalance)
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin console listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.Error("health check", "err", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := s.users.List(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}
	allowed, err := s.access.ListAllowed(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}
	balances, err := s.credits.ListBalances(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"users":    users,
		"allowed":  allowed,
		"balances": balances,
	})
}

type userIDRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) handleAllow(w http.ResponseWriter, r *http.Request) {
	var req userIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.UserID <= 0 {
		s.badRequest(w, errors.New("user_id required"))
		return
	}

	added, err := s.access.Allow(r.Context(), req.UserID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("allow list updated via console", "user_id", req.UserID, "added", added)
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "added": added})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	var req userIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.UserID <= 0 {
		s.badRequest(w, errors.New("user_id required"))
		return
	}

	removed, err := s.access.Disable(r.Context(), req.UserID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("allow list updated via console", "user_id", req.UserID, "removed", removed)
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "removed": removed})
}

type setBalanceRequest struct {
	UserID  int64   `json:"user_id"`
	Balance float64 `json:"balance"`
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.UserID <= 0 {
		s.badRequest(w, errors.New("user_id required"))
		return
	}
	if req.Balance < 0 {
		s.badRequest(w, errors.New("balance must not be negative"))
		return
	}

	if err := s.credits.SetBalance(r.Context(), req.UserID, req.Balance); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("balance set via console", "user_id", req.UserID, "balance", req.Balance)
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "balance": req.Balance})
}

func (s *Server) handleResetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "user_id"))
	if err != nil || userID <= 0 {
		s.badRequest(w, errors.New("user_id must be a positive integer"))
		return
	}

	if err := s.credits.ResetBalance(r.Context(), userID); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("balance reset via console", "user_id", userID)
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": 0.0})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="germes"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
