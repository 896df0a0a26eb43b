package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/model"
	"github.com/kodelive/kodelive-backend/internal/response"
	"github.com/kodelive/kodelive-backend/internal/store"
	"github.com/kodelive/kodelive-backend/internal/validator"
	"github.com/kodelive/kodelive-backend/internal/ws"
)

// SessionHandler serves the REST surface used by the observer dashboard:
// listing, creating, and inspecting sessions, plus the challenge catalog
// for the creation form. Live coordination happens over the WebSocket.
type SessionHandler struct {
	sessions *store.SessionStore
	catalog  *challenge.Catalog
	hub      *ws.Hub
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *store.SessionStore, catalog *challenge.Catalog, hub *ws.Hub, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		catalog:  catalog,
		hub:      hub,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/sessions
// Returns every session with timer-reconciled remaining durations.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.sessions.List())
}

// CreateSession godoc
// POST /api/v1/sessions
// Creates a session and announces it to connected lobby clients.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess := h.sessions.Create(req.SubjectName, req.ChallengeID)
	h.hub.BroadcastLobby(ws.Message{Event: ws.EventSessionCreated, Data: sess})

	response.Success(c, http.StatusCreated, sess)
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// ListChallenges godoc
// GET /api/v1/challenges
// Returns the gradable challenge catalog for the session-creation form.
func (h *SessionHandler) ListChallenges(c *gin.Context) {
	response.Success(c, http.StatusOK, h.catalog.List())
}
