package ws

import "github.com/kodelive/kodelive-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionGetSessions    Action = "get-sessions"
	ActionCreateSession  Action = "create-session"
	ActionJoinSession    Action = "join-session"
	ActionCodeChange     Action = "code-change"
	ActionLanguageChange Action = "language-change"
	ActionTimerUpdate    Action = "timer-update"
	ActionExecuteCode    Action = "execute-code"
	ActionPasteAttempt   Action = "paste-attempt"
	ActionTestSubmitted  Action = "test-submitted"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// CreateSessionRequest starts a new assessment session.
type CreateSessionRequest struct {
	Action      Action `json:"action"`
	SubjectName string `json:"subject_name"`
	ChallengeID string `json:"challenge_id"`
}

// JoinSessionRequest attaches the connection to an existing session.
type JoinSessionRequest struct {
	Action    Action `json:"action"`
	SessionID string `json:"session_id"`
}

// CodeChangeRequest replaces the session's code snapshot.
type CodeChangeRequest struct {
	Action    Action `json:"action"`
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	VariantID string `json:"variant_id,omitempty"`
}

// LanguageChangeRequest switches the active challenge variant.
type LanguageChangeRequest struct {
	Action    Action `json:"action"`
	SessionID string `json:"session_id"`
	VariantID string `json:"variant_id"`
}

// TimerUpdateRequest reports the client-side countdown state.
type TimerUpdateRequest struct {
	Action                      Action `json:"action"`
	SessionID                   string `json:"session_id"`
	IsInstructionPhase          bool   `json:"is_instruction_phase"`
	InstructionSecondsRemaining int    `json:"instruction_seconds_remaining"`
	CodingSecondsRemaining      int    `json:"coding_seconds_remaining"`
}

// ExecuteCodeRequest asks for a grading pass over the given snapshot.
type ExecuteCodeRequest struct {
	Action    Action `json:"action"`
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	VariantID string `json:"variant_id"`
}

// PasteAttemptRequest reports a paste anomaly in the subject's editor.
type PasteAttemptRequest struct {
	Action    Action `json:"action"`
	SessionID string `json:"session_id"`
}

// TestSubmittedRequest finalizes the session with the client-computed
// result. IsAutoSubmit distinguishes timer-expiry submission for audit
// and display only; the server treats both identically.
type TestSubmittedRequest struct {
	Action       Action                     `json:"action"`
	SessionID    string                     `json:"session_id"`
	Score        float64                    `json:"score"`
	Percentage   int                        `json:"percentage"`
	BugsPassed   int                        `json:"bugs_passed"`
	TotalBugs    int                        `json:"total_bugs"`
	Outcomes     map[string][]model.TestOutcome `json:"per_variant_outcomes,omitempty"`
	SecondsUsed  int                        `json:"seconds_used"`
	IsAutoSubmit bool                       `json:"is_auto_submit"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSessionsList     Event = "sessions-list"
	EventSessionCreated   Event = "session-created"
	EventSessionJoined    Event = "session-joined"
	EventSessionNotFound  Event = "session-not-found"
	EventSessionExpired   Event = "session-expired"
	EventCodeUpdate       Event = "code-update"
	EventLanguageUpdate   Event = "language-update"
	EventTimerSync        Event = "timer-sync"
	EventExecutionResult  Event = "execution-result"
	EventPasteAlert       Event = "paste-alert"
	EventSubmissionResult Event = "submission-result"
	EventError            Event = "error"
)

// Message is the server→client envelope.
type Message struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// CodeUpdateData carries an edit to the other connected parties.
type CodeUpdateData struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	VariantID string `json:"variant_id,omitempty"`
}

// LanguageUpdateData carries a variant switch to the other parties.
type LanguageUpdateData struct {
	SessionID string `json:"session_id"`
	VariantID string `json:"variant_id"`
}

// TimerSyncData redistributes one client's countdown to everyone.
type TimerSyncData struct {
	SessionID                   string `json:"session_id"`
	IsInstructionPhase          bool   `json:"is_instruction_phase"`
	InstructionSecondsRemaining int    `json:"instruction_seconds_remaining"`
	CodingSecondsRemaining      int    `json:"coding_seconds_remaining"`
}

// ExecutionResultData is the graded console every party must converge on.
type ExecutionResultData struct {
	SessionID  string              `json:"session_id"`
	Success    bool                `json:"success"`
	Output     string              `json:"output"`
	Outcomes   []model.TestOutcome `json:"outcomes,omitempty"`
	Score      float64             `json:"score"`
	MaxScore   float64             `json:"max_score"`
	Percentage int                 `json:"percentage"`
}

// PasteAlertData flags a paste anomaly to all parties.
type PasteAlertData struct {
	SessionID     string `json:"session_id"`
	SubjectName   string `json:"subject_name"`
	PasteAttempts int    `json:"paste_attempts"`
	Timestamp     string `json:"timestamp"`
}

// SubmissionResultData is the final scoreboard broadcast on submission.
type SubmissionResultData struct {
	SessionID    string  `json:"session_id"`
	SubjectName  string  `json:"subject_name"`
	Score        float64 `json:"score"`
	Percentage   int     `json:"percentage"`
	BugsPassed   int     `json:"bugs_passed"`
	TotalBugs    int     `json:"total_bugs"`
	SecondsUsed  int     `json:"seconds_used"`
	IsAutoSubmit bool    `json:"is_auto_submit"`
}

// ErrorData is the generic failure payload.
type ErrorData struct {
	Message string `json:"message"`
}
