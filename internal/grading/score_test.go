package grading

import (
	"testing"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/model"
)

func TestAggregateSinglePass(t *testing.T) {
	c, source := threeBugCatalog(t)
	e := NewEngine(c)

	outcomes := e.Evaluate("waiter:javascript", source)
	card := e.Aggregate(map[string][]model.TestOutcome{"waiter:javascript": outcomes})

	// One of three bugs passed at 10/3 points per bug.
	if card.BugsPassed != 1 || card.TotalBugs != 3 {
		t.Errorf("passed/total = %d/%d, want 1/3", card.BugsPassed, card.TotalBugs)
	}
	if card.Score != 3.3 {
		t.Errorf("score = %v, want 3.3", card.Score)
	}
	if card.Percentage != 33 {
		t.Errorf("percentage = %d, want 33", card.Percentage)
	}
	if card.MaxScore != challenge.MaxScore {
		t.Errorf("max = %v, want %v", card.MaxScore, challenge.MaxScore)
	}
}

func TestAggregateMonotonic(t *testing.T) {
	c, _ := threeBugCatalog(t)
	e := NewEngine(c)

	outcomes := []model.TestOutcome{
		{Ordinal: 1, Passed: false},
		{Ordinal: 2, Passed: false},
		{Ordinal: 3, Passed: false},
	}

	prev := -1.0
	for flip := 0; flip <= len(outcomes); flip++ {
		for i := 0; i < flip; i++ {
			outcomes[i].Passed = true
		}
		card := e.Aggregate(map[string][]model.TestOutcome{"waiter:javascript": outcomes})
		if card.Score < prev {
			t.Fatalf("score decreased from %v to %v after flipping %d outcomes to pass", prev, card.Score, flip)
		}
		prev = card.Score
	}
}

func TestAggregateClampedAtMax(t *testing.T) {
	rules := []challenge.BugRule{
		{Ordinal: 1, Checks: []challenge.Check{{Pattern: "a"}}},
		{Ordinal: 2, Checks: []challenge.Check{{Pattern: "b"}}},
		{Ordinal: 3, Checks: []challenge.Check{{Pattern: "c"}}},
	}
	c := challenge.NewCatalog()
	c.Register("Waiter",
		challenge.RuleSet{VariantID: "waiter:javascript", ChallengeID: "waiter", Language: "javascript", StarterCode: "x", Rules: rules},
		challenge.RuleSet{VariantID: "waiter:python", ChallengeID: "waiter", Language: "python", StarterCode: "x", Rules: rules},
	)
	e := NewEngine(c)

	// Two fully-passed variants must not double-count past the maximum.
	full := []model.TestOutcome{
		{Ordinal: 1, Passed: true},
		{Ordinal: 2, Passed: true},
		{Ordinal: 3, Passed: true},
	}
	card := e.Aggregate(map[string][]model.TestOutcome{
		"waiter:javascript": full,
		"waiter:python":     full,
	})

	if card.Score > challenge.MaxScore {
		t.Errorf("score %v exceeds maximum %v", card.Score, challenge.MaxScore)
	}
	if card.Percentage > 100 {
		t.Errorf("percentage %d exceeds 100", card.Percentage)
	}
}

func TestAggregateEmpty(t *testing.T) {
	c, _ := threeBugCatalog(t)
	e := NewEngine(c)

	card := e.Aggregate(nil)
	if card.Score != 0 || card.Percentage != 0 || card.TotalBugs != 0 {
		t.Errorf("empty aggregate = %+v, want zeros", card)
	}
}
