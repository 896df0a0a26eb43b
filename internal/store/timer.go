package store

import (
	"time"

	"github.com/kodelive/kodelive-backend/internal/model"
)

// ReconcileTimer corrects a stored timer snapshot for wall-clock time that
// elapsed since it was last stamped. Only the phase that is currently live
// is decremented, floored at zero; the other phase is left untouched, and
// the phase flag itself never flips here (the instruction→coding switch is
// a client decision reported through timer updates, since the two phases
// have independently meaningful starting durations).
//
// A snapshot that was never stamped is returned unchanged. Pure function.
func ReconcileTimer(snap model.TimerSnapshot, now time.Time) model.TimerSnapshot {
	if snap.LastReconciledAt.IsZero() {
		return snap
	}

	elapsed := int(now.Sub(snap.LastReconciledAt).Seconds())
	if elapsed <= 0 {
		return snap
	}

	if snap.IsInstructionPhase {
		snap.InstructionSecondsRemaining -= elapsed
		if snap.InstructionSecondsRemaining < 0 {
			snap.InstructionSecondsRemaining = 0
		}
	} else {
		snap.CodingSecondsRemaining -= elapsed
		if snap.CodingSecondsRemaining < 0 {
			snap.CodingSecondsRemaining = 0
		}
	}
	return snap
}
