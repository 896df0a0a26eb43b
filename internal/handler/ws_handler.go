package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kodelive/kodelive-backend/internal/grading"
	"github.com/kodelive/kodelive-backend/internal/model"
	"github.com/kodelive/kodelive-backend/internal/store"
	"github.com/kodelive/kodelive-backend/internal/ws"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler is the session coordinator: it owns the per-connection read
// loop and composes the store, grading engine, and hub behind the
// event-channel protocol.
type WSHandler struct {
	sessions *store.SessionStore
	engine   *grading.Engine
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *store.SessionStore, engine *grading.Engine, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		engine:   engine,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/stream
// Upgrades to WebSocket for live session coordination: creation, join,
// collaborative edits, timer sync, grading, and submission.
func (h *WSHandler) SessionStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := h.hub.Register(conn)
	defer h.hub.Unregister(client)

	for {
		data, err := ws.ReadRaw(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			break
		}

		action, err := ws.PeekAction(data)
		if err != nil {
			client.SendError("malformed payload")
			continue
		}

		switch action {
		case ws.ActionGetSessions:
			h.handleGetSessions(client)
		case ws.ActionCreateSession:
			h.handleCreateSession(client, data)
		case ws.ActionJoinSession:
			h.handleJoinSession(client, data)
		case ws.ActionCodeChange:
			h.handleCodeChange(client, data)
		case ws.ActionLanguageChange:
			h.handleLanguageChange(client, data)
		case ws.ActionTimerUpdate:
			h.handleTimerUpdate(client, data)
		case ws.ActionExecuteCode:
			h.handleExecuteCode(client, data)
		case ws.ActionPasteAttempt:
			h.handlePasteAttempt(client, data)
		case ws.ActionTestSubmitted:
			h.handleTestSubmitted(client, data)
		default:
			h.log.Warn().Str("action", string(action)).Msg("Unknown action")
			client.SendError("unknown action: " + string(action))
		}
	}
}

// handleGetSessions emits the timer-reconciled session list to the caller.
func (h *WSHandler) handleGetSessions(client *ws.Client) {
	client.Send(ws.Message{Event: ws.EventSessionsList, Data: h.sessions.List()})
}

// handleCreateSession creates a session and announces it to the lobby,
// the creator included.
func (h *WSHandler) handleCreateSession(client *ws.Client, data []byte) {
	var req ws.CreateSessionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SubjectName == "" || req.ChallengeID == "" {
		client.SendError("subject_name and challenge_id are required")
		return
	}

	sess := h.sessions.Create(req.SubjectName, req.ChallengeID)
	h.hub.BroadcastLobby(ws.Message{Event: ws.EventSessionCreated, Data: sess})
}

// handleJoinSession activates the session and subscribes the connection
// to its room. Missing and completed sessions surface distinct terminal
// signals so the client can render "invalid link" vs "link expired".
func (h *WSHandler) handleJoinSession(client *ws.Client, data []byte) {
	var req ws.JoinSessionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		client.SendError("session_id is required")
		return
	}

	sess, err := h.sessions.Join(req.SessionID)
	switch {
	case err == store.ErrSessionNotFound:
		client.Send(ws.Message{Event: ws.EventSessionNotFound, Data: ws.ErrorData{Message: "this session does not exist"}})
		return
	case err == store.ErrSessionExpired:
		client.Send(ws.Message{Event: ws.EventSessionExpired, Data: ws.ErrorData{Message: "this session has ended and can no longer be joined"}})
		return
	}

	h.hub.Subscribe(client, sess.ID)
	client.Send(ws.Message{Event: ws.EventSessionJoined, Data: sess})
	h.hub.BroadcastLobby(ws.Message{Event: ws.EventSessionsList, Data: h.sessions.List()})
}

// handleCodeChange stores the edit and fans it out to everyone except the
// editor. Echoing the edit back would perturb the sender's cursor and
// selection state. Writes against vanished or completed sessions are
// benign no-ops and produce no broadcast.
func (h *WSHandler) handleCodeChange(client *ws.Client, data []byte) {
	var req ws.CodeChangeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		client.SendError("malformed code-change payload")
		return
	}

	if !h.sessions.UpdateCode(req.SessionID, req.Code, req.VariantID) {
		return
	}
	h.hub.BroadcastExcept(req.SessionID, client, ws.Message{
		Event: ws.EventCodeUpdate,
		Data: ws.CodeUpdateData{
			SessionID: req.SessionID,
			Code:      req.Code,
			VariantID: req.VariantID,
		},
	})
}

// handleLanguageChange switches the active variant, sender-excluded.
func (h *WSHandler) handleLanguageChange(client *ws.Client, data []byte) {
	var req ws.LanguageChangeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" || req.VariantID == "" {
		client.SendError("malformed language-change payload")
		return
	}

	if !h.sessions.UpdateVariant(req.SessionID, req.VariantID) {
		return
	}
	h.hub.BroadcastExcept(req.SessionID, client, ws.Message{
		Event: ws.EventLanguageUpdate,
		Data: ws.LanguageUpdateData{
			SessionID: req.SessionID,
			VariantID: req.VariantID,
		},
	})
}

// handleTimerUpdate overwrites the stored timer snapshot with the client
// report and redistributes it to all parties, sender included, so every
// display converges on the same countdown.
func (h *WSHandler) handleTimerUpdate(client *ws.Client, data []byte) {
	var req ws.TimerUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		client.SendError("malformed timer-update payload")
		return
	}

	snap := model.TimerSnapshot{
		IsInstructionPhase:          req.IsInstructionPhase,
		InstructionSecondsRemaining: req.InstructionSecondsRemaining,
		CodingSecondsRemaining:      req.CodingSecondsRemaining,
	}
	if !h.sessions.UpdateTimer(req.SessionID, snap) {
		return
	}
	h.hub.Broadcast(req.SessionID, ws.Message{
		Event: ws.EventTimerSync,
		Data: ws.TimerSyncData{
			SessionID:                   req.SessionID,
			IsInstructionPhase:          req.IsInstructionPhase,
			InstructionSecondsRemaining: req.InstructionSecondsRemaining,
			CodingSecondsRemaining:      req.CodingSecondsRemaining,
		},
	})
}

// handleExecuteCode grades the submitted snapshot and delivers the result
// to every party, the subject included: the rendered test console is a
// fact all parties must converge on identically.
func (h *WSHandler) handleExecuteCode(client *ws.Client, data []byte) {
	var req ws.ExecuteCodeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" || req.VariantID == "" {
		client.SendError("malformed execute-code payload")
		return
	}

	// A grading fault must never take down the connection; it degrades
	// to a failed execution result delivered like any other.
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("session_id", req.SessionID).Msg("Grading panicked")
			result := ws.Message{Event: ws.EventExecutionResult, Data: ws.ExecutionResultData{
				SessionID: req.SessionID,
				Success:   false,
				Output:    "Execution failed: internal error",
			}}
			client.Send(result)
			h.hub.BroadcastExcept(req.SessionID, client, result)
		}
	}()

	if _, ok := h.sessions.Get(req.SessionID); !ok {
		client.SendError("session not found")
		return
	}

	h.sessions.UpdateCode(req.SessionID, req.Code, req.VariantID)

	outcomes := h.engine.Evaluate(req.VariantID, req.Code)
	rendered := renderConsole(outcomes)

	history, stored := h.sessions.RecordOutcomes(req.SessionID, req.VariantID, outcomes, rendered)
	if !stored {
		// Completed session: show the console to the caller, mutate and
		// re-broadcast nothing.
		history = map[string][]model.TestOutcome{req.VariantID: outcomes}
	}
	card := h.engine.Aggregate(history)

	result := ws.Message{Event: ws.EventExecutionResult, Data: ws.ExecutionResultData{
		SessionID:  req.SessionID,
		Success:    true,
		Output:     rendered,
		Outcomes:   outcomes,
		Score:      card.Score,
		MaxScore:   card.MaxScore,
		Percentage: card.Percentage,
	}}

	client.Send(result)
	if stored {
		h.hub.BroadcastExcept(req.SessionID, client, result)
	}
}

// handlePasteAttempt flags the anomaly to every party with the subject
// name and a timestamp. Alerts against vanished sessions are dropped.
func (h *WSHandler) handlePasteAttempt(client *ws.Client, data []byte) {
	var req ws.PasteAttemptRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		client.SendError("malformed paste-attempt payload")
		return
	}

	subject, count, ok := h.sessions.RecordPasteAttempt(req.SessionID)
	if !ok {
		return
	}
	h.hub.Broadcast(req.SessionID, ws.Message{
		Event: ws.EventPasteAlert,
		Data: ws.PasteAlertData{
			SessionID:     req.SessionID,
			SubjectName:   subject,
			PasteAttempts: count,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleTestSubmitted irreversibly completes the session and broadcasts
// the final scoreboard. Auto-submission (timer expiry) is identical to a
// manual one apart from the audit flag. A second submission for an
// already-completed session is accepted at the transport and ignored.
func (h *WSHandler) handleTestSubmitted(client *ws.Client, data []byte) {
	var req ws.TestSubmittedRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		client.SendError("malformed test-submitted payload")
		return
	}

	summary := &model.SubmissionSummary{
		Score:        req.Score,
		Percentage:   req.Percentage,
		BugsPassed:   req.BugsPassed,
		TotalBugs:    req.TotalBugs,
		SecondsUsed:  req.SecondsUsed,
		IsAutoSubmit: req.IsAutoSubmit,
	}
	if !h.sessions.Complete(req.SessionID, summary) {
		return
	}

	sess, _ := h.sessions.Get(req.SessionID)
	h.hub.Broadcast(req.SessionID, ws.Message{
		Event: ws.EventSubmissionResult,
		Data: ws.SubmissionResultData{
			SessionID:    req.SessionID,
			SubjectName:  sess.SubjectName,
			Score:        req.Score,
			Percentage:   req.Percentage,
			BugsPassed:   req.BugsPassed,
			TotalBugs:    req.TotalBugs,
			SecondsUsed:  req.SecondsUsed,
			IsAutoSubmit: req.IsAutoSubmit,
		},
	})
	h.hub.BroadcastLobby(ws.Message{Event: ws.EventSessionsList, Data: h.sessions.List()})
}

// renderConsole formats outcomes the way the embedded test console shows
// them.
func renderConsole(outcomes []model.TestOutcome) string {
	var b strings.Builder
	passed := 0
	for _, o := range outcomes {
		mark := "FAIL"
		if o.Passed {
			mark = "PASS"
			passed++
		}
		fmt.Fprintf(&b, "[%s] bug %d: %s\n", mark, o.Ordinal, o.Message)
	}
	fmt.Fprintf(&b, "%d/%d checks passed\n", passed, len(outcomes))
	return b.String()
}
