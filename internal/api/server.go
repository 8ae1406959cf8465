package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"blindrelay/internal/session"
	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

// ConnStats is the slice of the connection registry the API needs for
// counts, kept as an interface to avoid coupling to the transport package.
type ConnStats interface {
	SessionConnectionCount(sessionID string) int
	Stats() map[string]int
}

// Admitter requests AI admission for a session, detached from the caller.
type Admitter interface {
	RequestAdmission(sessionID string)
}

// Server is the REST surface: session lifecycle endpoints plus health. Pure
// HTTP handling and JSON serialization; session semantics live in the
// session package and durable state in the store.
type Server struct {
	store    interfaces.SessionStore
	verifier interfaces.Verifier
	sessions *session.Registry
	conns    ConnStats
	admitter Admitter
	mux      *http.ServeMux
}

// NewServer creates the API server and sets up its routes.
func NewServer(store interfaces.SessionStore, verifier interfaces.Verifier, sessions *session.Registry, conns ConnStats, admitter Admitter) *Server {
	s := &Server{
		store:    store,
		verifier: verifier,
		sessions: sessions,
		conns:    conns,
		admitter: admitter,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.Handle("POST /api/sessions/create", s.wrap(s.authenticated(s.createSession)))
	s.mux.Handle("POST /api/sessions/join", s.wrap(s.authenticated(s.joinSession)))
	s.mux.Handle("GET /api/sessions", s.wrap(s.authenticated(s.listSessions)))
	s.mux.Handle("GET /api/sessions/{id}", s.wrap(s.authenticated(s.getSession)))
	s.mux.Handle("DELETE /api/sessions/{id}", s.wrap(s.authenticated(s.deleteSession)))
	s.mux.Handle("GET /api/sessions/{id}/live", s.wrap(s.authenticated(s.liveState)))
	s.mux.Handle("GET /health", s.wrap(http.HandlerFunc(s.healthCheck)))
	s.mux.Handle("OPTIONS /", s.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// wrap applies the CORS and JSON middleware shared by every route.
func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// authenticated verifies the bearer token and stores the identity in the
// request context. An unverified credential is a 401, never a substitute
// identity.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, *types.Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.sendError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		identity, err := s.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.sendError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next(w, r, identity)
	})
}

type createSessionRequest struct {
	SessionName     string `json:"session_name"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"max_participants"`
	DurationMinutes int    `json:"duration_minutes"`
}

type joinSessionRequest struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
}

type joinSessionResponse struct {
	Message     string     `json:"message"`
	SessionID   string     `json:"session_id"`
	Role        types.Role `json:"role"`
	SessionName string     `json:"session_name,omitempty"`
}

// createSession persists a new session record; the creator takes the judge
// seat and the live session is materialized immediately.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = 3
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = 30
	}

	now := time.Now().UTC()
	record := &types.SessionRecord{
		SessionID:    uuid.New().String()[:8],
		Name:         req.SessionName,
		Description:  req.Description,
		CreatorID:    identity.UserID,
		CreatorName:  identity.Name,
		CreatorEmail: identity.Email,
		Status:       types.StatusWaiting,
		Participants: []types.Participant{{
			UserID:   identity.UserID,
			Name:     identity.Name,
			Email:    identity.Email,
			Role:     types.RoleJudge,
			JoinedAt: now,
		}},
		JoinCode:        strings.ToUpper(uuid.New().String()[:6]),
		MaxParticipants: req.MaxParticipants,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := record.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateSession(r.Context(), record); err != nil {
		log.Printf("Failed to create session record: %v", err)
		s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	live := s.sessions.GetOrCreate(record.SessionID, identity.UserID)
	if _, err := live.AddParticipant(types.RoleJudge, identity.UserID, nil); err != nil {
		log.Printf("Failed to seat creator: %v", err)
	}

	log.Printf("Session created: session=%s creator=%s", record.SessionID, identity.UserID)
	s.sendJSON(w, record, http.StatusCreated)
}

// joinSession resolves a session by ID or join code and seats the caller as
// the human respondent.
func (s *Server) joinSession(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var record *types.SessionRecord
	var err error
	switch {
	case req.SessionID != "":
		record, err = s.store.GetSession(r.Context(), req.SessionID)
	case req.JoinCode != "":
		record, err = s.store.FindByJoinCode(r.Context(), strings.ToUpper(req.JoinCode))
	default:
		s.sendError(w, "Either session_id or join_code is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}

	if record.Status != types.StatusWaiting {
		s.sendError(w, "Session is not accepting new participants", http.StatusBadRequest)
		return
	}

	if existing, ok := record.ParticipantByID(identity.UserID); ok {
		s.sendJSON(w, joinSessionResponse{
			Message:   "Already in session",
			SessionID: record.SessionID,
			Role:      existing.Role,
		}, http.StatusOK)
		return
	}

	if len(record.Participants) >= record.MaxParticipants {
		s.sendError(w, "Session is full", http.StatusBadRequest)
		return
	}

	// The joining user becomes the human respondent; the AI seat is claimed
	// by the admission flow over its own transport connection.
	live := s.sessions.GetOrCreate(record.SessionID, record.CreatorID)
	res, err := live.AddParticipant(types.RoleHuman, identity.UserID, nil)
	if err != nil {
		if errors.Is(err, session.ErrRoleConflict) {
			s.sendError(w, "Session already has its human respondent", http.StatusConflict)
			return
		}
		s.sendError(w, "Session is no longer joinable", http.StatusBadRequest)
		return
	}

	participant := &types.Participant{
		UserID:   identity.UserID,
		Name:     identity.Name,
		Email:    identity.Email,
		Role:     types.RoleHuman,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.store.AddParticipant(r.Context(), record.SessionID, participant); err != nil {
		log.Printf("Failed to persist participant: %v", err)
		s.sendError(w, "Failed to join session", http.StatusInternalServerError)
		return
	}

	if res.TriggerAdmission {
		s.admitter.RequestAdmission(record.SessionID)
	}

	log.Printf("Session joined: session=%s user=%s", record.SessionID, identity.UserID)
	s.sendJSON(w, joinSessionResponse{
		Message:     "Joined session successfully",
		SessionID:   record.SessionID,
		Role:        types.RoleHuman,
		SessionName: record.Name,
	}, http.StatusOK)
}

// getSession returns the durable record, participants only.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	record, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	if _, ok := record.ParticipantByID(identity.UserID); !ok {
		s.sendError(w, "Not a participant in this session", http.StatusForbidden)
		return
	}

	s.sendJSON(w, record, http.StatusOK)
}

// listSessions returns the caller's sessions, newest first.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	records, err := s.store.ListUserSessions(r.Context(), identity.UserID, 50)
	if err != nil {
		log.Printf("Failed to list sessions for %s: %v", identity.UserID, err)
		s.sendError(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.SessionRecord{}
	}

	s.sendJSON(w, map[string]interface{}{"sessions": records}, http.StatusOK)
}

// deleteSession removes the record and the live session. Creator only.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	sessionID := r.PathValue("id")

	record, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if record.CreatorID != identity.UserID {
		s.sendError(w, "Only session creator can delete", http.StatusForbidden)
		return
	}

	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		s.storeError(w, err)
		return
	}
	s.sessions.Remove(sessionID)

	log.Printf("Session deleted: session=%s by=%s", sessionID, identity.UserID)
	s.sendJSON(w, map[string]string{"message": "Session deleted successfully"}, http.StatusOK)
}

// liveState exposes the in-memory session state: lifecycle state, seat
// assignments, and live connection count.
func (s *Server) liveState(w http.ResponseWriter, r *http.Request, identity *types.Identity) {
	sessionID := r.PathValue("id")

	live, exists := s.sessions.Get(sessionID)
	if !exists {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	seats := live.Seats()
	s.sendJSON(w, map[string]interface{}{
		"session_id":   sessionID,
		"state":        live.State(),
		"participants": seats,
		"connections":  s.conns.SessionConnectionCount(sessionID),
	}, http.StatusOK)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	status := http.StatusOK
	if dbStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}

	s.sendJSON(w, map[string]interface{}{
		"status":        dbStatus,
		"timestamp":     time.Now().UTC(),
		"database":      dbStatus,
		"connections":   s.conns.Stats(),
		"live_sessions": s.sessions.Count(),
	}, status)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, interfaces.ErrSessionNotFound) {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}
	log.Printf("Store error: %v", err)
	s.sendError(w, "Storage unavailable", http.StatusInternalServerError)
}

func (s *Server) sendJSON(w http.ResponseWriter, v interface{}, status int) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
