// Package httpapi exposes lessons and tutoring sessions over HTTP and
// websockets.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

const maxRequestBytes int64 = 1 << 20

// Sessions reads and resets session data. *interaction.Service implements it.
type Sessions interface {
	State(ctx context.Context, learnerID, lessonID string) (*tutor.State, error)
	History(ctx context.Context, learnerID, lessonID string, limit int) ([]store.HistoryEntry, error)
	Reset(ctx context.Context, learnerID, lessonID string) error
}

// Turns accepts learner turns. *interaction.Queue implements it.
type Turns interface {
	Submit(ctx context.Context, turn interaction.Turn) (*interaction.Reply, error)
	Enqueue(ctx context.Context, turn interaction.Turn, done func(interaction.Result)) error
}

// Deps are the services behind the API.
type Deps struct {
	Lessons  store.LessonRepo
	Sessions Sessions
	Turns    Turns
}

type server struct {
	logger *zap.Logger
	deps   Deps
}

// NewServer returns an http.Server serving the API on addr.
func NewServer(logger *zap.Logger, addr string, deps Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(logger, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewHandler returns the API router.
func NewHandler(logger *zap.Logger, deps Deps) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{logger: logger, deps: deps}

	router := mux.NewRouter()
	router.Use(s.logRequests)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/lessons", s.handleListLessons).Methods(http.MethodGet)
	api.HandleFunc("/lessons/{lesson}", s.handleGetLesson).Methods(http.MethodGet)

	api.HandleFunc("/lessons/{lesson}/learners/{learner}", s.handleReset).Methods(http.MethodDelete)

	session := api.PathPrefix("/lessons/{lesson}/learners/{learner}").Subrouter()
	session.HandleFunc("/turns", s.handleTurn).Methods(http.MethodPost)
	session.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	session.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	session.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	return router
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.deps.Lessons.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if lessons == nil {
		lessons = []store.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (s *server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.deps.Lessons.Get(r.Context(), mux.Vars(r)["lesson"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

type turnRequest struct {
	Message        string `json:"message"`
	SubmissionType string `json:"submission_type"`
}

func (s *server) handleTurn(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req turnRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "invalid json: trailing content")
		return
	}

	turn, err := toTurn(mux.Vars(r), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.deps.Turns.Submit(r.Context(), turn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := s.deps.Lessons.Get(r.Context(), vars["lesson"]); err != nil {
		s.fail(w, r, err)
		return
	}
	state, err := s.deps.Sessions.State(r.Context(), vars["learner"], vars["lesson"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.deps.Sessions.History(r.Context(), vars["learner"], vars["lesson"], limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Sessions.Reset(r.Context(), vars["learner"], vars["lesson"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps err to a status code and writes it.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := s.public(r, err)
	writeError(w, status, msg)
}

// public returns the status for err and the message safe to show a
// client. Server-side causes are logged and replaced by the status text.
func (s *server) public(r *http.Request, err error) (int, string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		return status, http.StatusText(status)
	}
	return status, err.Error()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interaction.ErrLessonNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interaction.ErrInvalidTurn):
		return http.StatusBadRequest
	case errors.Is(err, interaction.ErrSessionQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, interaction.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toTurn(vars map[string]string, req turnRequest) (interaction.Turn, error) {
	sub := interaction.Submission(strings.TrimSpace(req.SubmissionType))
	switch sub {
	case "":
		sub = interaction.SubmitChat
	case interaction.SubmitChat, interaction.SubmitAnswer, interaction.SubmitAssessment:
	default:
		return interaction.Turn{}, fmt.Errorf("unsupported submission_type %q", req.SubmissionType)
	}
	return interaction.Turn{
		LearnerID:  vars["learner"],
		LessonID:   vars["lesson"],
		Message:    req.Message,
		Submission: sub,
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("connection does not support hijacking")
	}
	return h.Hijack()
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}
