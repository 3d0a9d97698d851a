/*
 * @module api/controllers/session_controller
 * @description Session lifecycle controller: create, inspect and delete pipeline sessions
 * @architecture MVC architecture - controller layer
 * @documentReference service/session/store.go
 * @stateFlow create session -> slots filled by dataset/pipeline controllers -> delete
 * @rules An absent slot is reported as "not yet run", never as an error
 * @dependencies net/http, github.com/go-chi/chi/v5, opendata-service/service
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"opendata-service/service"
	"opendata-service/service/session"
)

// SessionController manages pipeline sessions.
type SessionController struct{}

// NewSessionController creates a session controller instance.
func NewSessionController() *SessionController {
	return &SessionController{}
}

// SessionInfo is the session status payload.
type SessionInfo struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Slots     map[string]bool `json:"slots"`
}

// Create
// @Summary Create session
// @Description Registers a new, empty pipeline session
// @Tags sessions
// @Produce json
// @Success 200 {object} APIResponse{data=SessionInfo}
// @Router /sessions [post]
func (c *SessionController) Create(w http.ResponseWriter, r *http.Request) {
	s := service.GlobalSessionManager.Create()
	OK(w, r, sessionInfo(s))
}

// Get
// @Summary Session status
// @Description Reports which pipeline slots are set for a session
// @Tags sessions
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} APIResponse{data=SessionInfo}
// @Failure 404 {object} APIResponse
// @Router /sessions/{id} [get]
func (c *SessionController) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}
	OK(w, r, sessionInfo(s))
}

// Delete
// @Summary Delete session
// @Description Removes a session and all of its pipeline state
// @Tags sessions
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /sessions/{id} [delete]
func (c *SessionController) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !service.GlobalSessionManager.Delete(id) {
		Fail(w, r, http.StatusNotFound, "session not found: "+id)
		return
	}
	OK(w, r, nil)
}

func sessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt(),
		Slots:     s.Status(),
	}
}

// requireSession resolves the {id} URL parameter, rendering a 404 when the
// session does not exist.
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := service.GlobalSessionManager.Get(id)
	if !ok {
		Fail(w, r, http.StatusNotFound, "session not found: "+id)
		return nil, false
	}
	return s, true
}
