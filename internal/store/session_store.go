package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/model"
)

var (
	// ErrSessionNotFound signals a lookup against an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired signals a join against a completed session. It is
	// deliberately distinct from not-found: the caller renders "this link
	// can no longer be used", not "invalid link".
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore is the exclusive owner of all session entities. Every read
// and write goes through it; each operation runs to completion under the
// lock, so last-writer-wins is the conflict policy for racing edits.
//
// State is volatile and in-memory for the life of the process. Sessions
// are never evicted; acceptable for a bounded-duration interview tool.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	catalog         *challenge.Catalog
	instructionSecs int
	codingSecs      int
	now             func() time.Time
	log             zerolog.Logger
}

// NewSessionStore creates an empty store. instructionSecs and codingSecs
// are the starting durations handed to every new session's timer.
func NewSessionStore(catalog *challenge.Catalog, instructionSecs, codingSecs int, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*model.Session),
		catalog:         catalog,
		instructionSecs: instructionSecs,
		codingSecs:      codingSecs,
		now:             time.Now,
		log:             log.With().Str("component", "session_store").Logger(),
	}
}

// Create allocates a new waiting session seeded with the challenge's
// default variant and starter code. Never fails: an unknown challenge id
// still yields a session, just with no starter text (grading will report
// the missing rules per variant).
func (s *SessionStore) Create(subjectName, challengeID string) model.Session {
	variantID := challengeID
	starter := ""
	if rs, ok := s.catalog.DefaultVariant(challengeID); ok {
		variantID = rs.VariantID
		starter = rs.StarterCode
	}

	sess := &model.Session{
		ID:          uuid.New().String(),
		SubjectName: subjectName,
		ChallengeID: challengeID,
		VariantID:   variantID,
		Code:        starter,
		Status:      model.SessionStatusWaiting,
		Timer: model.TimerSnapshot{
			IsInstructionPhase:          true,
			InstructionSecondsRemaining: s.instructionSecs,
			CodingSecondsRemaining:      s.codingSecs,
		},
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", sess.ID).
		Str("challenge_id", challengeID).
		Str("subject", subjectName).
		Msg("Session created")

	return snapshot(sess)
}

// Get returns a copy of the stored session without restamping its timer.
func (s *SessionStore) Get(id string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return snapshot(sess), true
}

// List returns all sessions with timer fields reconciled for display.
// The stored snapshots are not restamped; listing is a pure read.
func (s *SessionStore) List() []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		view := snapshot(sess)
		view.Timer = ReconcileTimer(view.Timer, now)
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Join activates a session and hands back its reconciled state so a
// reconnecting client resumes with the remaining time it actually has,
// not the stale value stamped at disconnect. Idempotent: rejoining an
// active session simply re-reconciles and restamps. A completed session
// yields ErrSessionExpired, distinct from ErrSessionNotFound.
func (s *SessionStore) Join(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Status == model.SessionStatusCompleted {
		return model.Session{}, ErrSessionExpired
	}

	now := s.now()
	sess.Status = model.SessionStatusActive
	sess.Timer = ReconcileTimer(sess.Timer, now)
	sess.Timer.LastReconciledAt = now

	return snapshot(sess), nil
}

// UpdateCode replaces the code snapshot and, when variantID is non-empty,
// the active rule variant. Writes against a missing or completed session
// are benign no-ops: edits racing a vanished session are expected. The
// returned flag reports whether a mutation actually happened, so the
// caller knows whether to re-broadcast.
func (s *SessionStore) UpdateCode(id, code, variantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status == model.SessionStatusCompleted {
		return false
	}
	sess.Code = code
	if variantID != "" {
		sess.VariantID = variantID
	}
	return true
}

// UpdateVariant switches the active rule variant without touching the
// code snapshot. Same no-op policy as UpdateCode.
func (s *SessionStore) UpdateVariant(id, variantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status == model.SessionStatusCompleted {
		return false
	}
	sess.VariantID = variantID
	return true
}

// UpdateTimer overwrites the timer snapshot with a client report and
// stamps it with the current wall clock. No-op on missing or completed
// sessions.
func (s *SessionStore) UpdateTimer(id string, snap model.TimerSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status == model.SessionStatusCompleted {
		return false
	}
	snap.LastReconciledAt = s.now()
	sess.Timer = snap
	return true
}

// RecordOutcomes stores the latest grading output for a variant together
// with its rendered console text. No-op on missing or completed sessions.
// Returns a copy of the full per-variant outcome history for aggregation.
func (s *SessionStore) RecordOutcomes(id, variantID string, outcomes []model.TestOutcome, rendered string) (map[string][]model.TestOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status == model.SessionStatusCompleted {
		return nil, false
	}
	if sess.Outcomes == nil {
		sess.Outcomes = make(map[string][]model.TestOutcome)
	}
	sess.Outcomes[variantID] = append([]model.TestOutcome(nil), outcomes...)
	sess.LastOutput = rendered
	return copyOutcomes(sess.Outcomes), true
}

// RecordPasteAttempt bumps the session's paste counter and returns the
// subject name and new count for the anomaly alert. Counted even after
// completion: it is an audit field, not session state.
func (s *SessionStore) RecordPasteAttempt(id string) (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return "", 0, false
	}
	sess.PasteAttempts++
	return sess.SubjectName, sess.PasteAttempts, true
}

// Complete irreversibly marks the session completed and attaches the
// final submission summary. No-op when missing or already completed.
func (s *SessionStore) Complete(id string, summary *model.SubmissionSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.Status == model.SessionStatusCompleted {
		return false
	}
	sess.Status = model.SessionStatusCompleted
	sess.Submission = summary

	s.log.Info().
		Str("session_id", id).
		Bool("auto_submit", summary != nil && summary.IsAutoSubmit).
		Msg("Session completed")

	return true
}

// SetClock overrides the wall-clock source. Test hook.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// snapshot deep-copies a session so callers never share mutable state
// with the store.
func snapshot(sess *model.Session) model.Session {
	out := *sess
	out.Outcomes = copyOutcomes(sess.Outcomes)
	if sess.Submission != nil {
		sub := *sess.Submission
		out.Submission = &sub
	}
	return out
}

func copyOutcomes(in map[string][]model.TestOutcome) map[string][]model.TestOutcome {
	if in == nil {
		return nil
	}
	out := make(map[string][]model.TestOutcome, len(in))
	for k, v := range in {
		out[k] = append([]model.TestOutcome(nil), v...)
	}
	return out
}
