package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
	"github.com/sergeevgit1/camoufox-automation/internal/usecase"
)

// userHeader carries the identity resolved by the upstream gateway.
// Authentication itself lives outside this service.
const userHeader = "X-User-ID"

type Server struct {
	router   *chi.Mux
	tasks    ports.TaskStore
	sessions ports.SessionStore
	submit   usecase.Submitter
}

func NewServer(tasks ports.TaskStore, sessions ports.SessionStore, submit usecase.Submitter) *Server {
	s := &Server{
		tasks:    tasks,
		sessions: sessions,
		submit:   submit,
	}

	r := chi.NewRouter()
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/tasks", s.submitTask)
			r.Get("/tasks", s.listTasks)
		})
	})
	r.Get("/tasks/{id}", s.getTask)

	s.router = r
	return s
}

type createSessionReq struct {
	Name          string        `json:"name"`
	BrowserConfig domain.Params `json:"browserConfig"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	sess := &domain.Session{
		UserID:        userID,
		Name:          req.Name,
		Status:        domain.SessionStopped,
		BrowserConfig: req.BrowserConfig,
	}
	if _, err := s.sessions.CreateSession(r.Context(), sess); err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	sessions, err := s.sessions.ListUserSessions(r.Context(), userID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	sess, ok := s.ownedSession(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// deleteSession cascades to the session's tasks at the database level.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	sess, ok := s.ownedSession(w, r, userID)
	if !ok {
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), sess.ID); err != nil {
		serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitTaskReq struct {
	Action     domain.Action `json:"action"`
	Parameters domain.Params `json:"parameters"`
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req submitTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !domain.ValidAction(req.Action) {
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}

	taskID, err := s.submit.Submit(r.Context(), userID, sessionID, req.Action, req.Parameters)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"taskId": taskID})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	sess, ok := s.ownedSession(w, r, userID)
	if !ok {
		return
	}
	tasks, err := s.tasks.ListSessionTasks(r.Context(), sess.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := s.tasks.GetTask(r.Context(), taskID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	if task.UserID != userID {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request, userID int64) (*domain.Session, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.sessions.GetSession(r.Context(), id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		serverError(w, r, err)
		return nil, false
	}
	if sess.UserID != userID {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func identity(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "missing or invalid "+userHeader+" header", http.StatusUnauthorized)
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run method of the Server struct runs the HTTP server on the specified
// port with the standard middleware chain and graceful shutdown.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Mount("/", s.router)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("failed to listen and serve")
	}

	<-done
	log.Info().Msg("server stopped")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
