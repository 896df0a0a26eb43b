package grading

import (
	"math"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/model"
)

// Aggregate folds per-variant outcome lists into one bounded score card.
// Each variant contributes its passed count times its own point value
// (MaxScore divided by that variant's rule count), clamped so the running
// total can never exceed MaxScore even when several variants were
// attempted. Pure function of its input.
func (e *Engine) Aggregate(outcomes map[string][]model.TestOutcome) model.ScoreCard {
	card := model.ScoreCard{MaxScore: challenge.MaxScore}

	for variantID, list := range outcomes {
		pv := e.PointValue(variantID)
		for _, o := range list {
			card.TotalBugs++
			if o.Passed {
				card.BugsPassed++
				card.Score += pv
			}
		}
	}

	if card.Score > challenge.MaxScore {
		card.Score = challenge.MaxScore
	}
	card.Score = math.Round(card.Score*10) / 10
	card.Percentage = int(math.Round(card.Score / challenge.MaxScore * 100))
	return card
}
