package handler

import (
	"errors"
	"net/http"

	"vidyavichar/internal/service"

	"github.com/gorilla/mux"
)

// SessionHandler handles live session endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// StartSessionRequest is the request body for starting a session
type StartSessionRequest struct {
	CourseID string `json:"courseId" validate:"required,max=64"`
	Title    string `json:"title,omitempty" validate:"max=200"`
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionSvc.StartSession(r.Context(), caller, req.CourseID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// End handles PATCH /v1/sessions/{id}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	session, err := h.sessionSvc.EndSession(r.Context(), caller, id)
	if err != nil && !errors.Is(err, service.ErrAlreadyEnded) {
		writeServiceError(w, r, err)
		return
	}

	// ending twice is reported as success with the stored session
	writeJSON(w, http.StatusOK, session)
}

// Active handles GET /v1/courses/{courseId}/sessions/active
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerOrReject(w, r); !ok {
		return
	}
	courseID := mux.Vars(r)["courseId"]

	session, err := h.sessionSvc.GetActiveSession(r.Context(), courseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// null when the course has no live session
	writeJSON(w, http.StatusOK, session)
}

// List handles GET /v1/courses/{courseId}/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerOrReject(w, r); !ok {
		return
	}
	courseID := mux.Vars(r)["courseId"]

	sessions, err := h.sessionSvc.ListSessions(r.Context(), courseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}
