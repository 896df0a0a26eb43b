package model

import (
	"time"
)

// SessionStatus enumerates assessment session states.
type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "WAITING"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// TimerSnapshot is the last-known state of a session's two-phase countdown.
// The actual ticking happens client-side; the server only stores the most
// recent report and corrects it for elapsed wall-clock time on read.
type TimerSnapshot struct {
	IsInstructionPhase          bool      `json:"is_instruction_phase"`
	InstructionSecondsRemaining int       `json:"instruction_seconds_remaining"`
	CodingSecondsRemaining      int       `json:"coding_seconds_remaining"`
	LastReconciledAt            time.Time `json:"-"`
}

// Session represents one live assessment instance.
type Session struct {
	ID            string                   `json:"id"`
	SubjectName   string                   `json:"subject_name"`
	ChallengeID   string                   `json:"challenge_id"`
	VariantID     string                   `json:"variant_id"`
	Code          string                   `json:"code"`
	Status        SessionStatus            `json:"status"`
	Timer         TimerSnapshot            `json:"timer"`
	LastOutput    string                   `json:"last_output,omitempty"`
	Outcomes      map[string][]TestOutcome `json:"outcomes,omitempty"`
	PasteAttempts int                      `json:"paste_attempts"`
	Submission    *SubmissionSummary       `json:"submission,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// TestOutcome is the result of evaluating a single bug rule against the
// submitted source text.
type TestOutcome struct {
	Ordinal int    `json:"ordinal"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// ScoreCard is the bounded aggregate over all outcomes a session has
// produced. Derived on demand, never stored on its own.
type ScoreCard struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage int     `json:"percentage"`
	BugsPassed int     `json:"bugs_passed"`
	TotalBugs  int     `json:"total_bugs"`
}

// SubmissionSummary records the final result of a session for audit and
// display. The only fields a completed session may still accept.
type SubmissionSummary struct {
	Score        float64 `json:"score"`
	Percentage   int     `json:"percentage"`
	BugsPassed   int     `json:"bugs_passed"`
	TotalBugs    int     `json:"total_bugs"`
	SecondsUsed  int     `json:"seconds_used"`
	IsAutoSubmit bool    `json:"is_auto_submit"`
}

// CreateSessionRequest is the payload for creating a new session.
type CreateSessionRequest struct {
	SubjectName string `json:"subject_name" binding:"required,min=1,max=80"`
	ChallengeID string `json:"challenge_id" binding:"required,min=1,max=64"`
}
