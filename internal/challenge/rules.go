package challenge

import (
	"regexp"
	"strings"
)

// MaxScore is the total a clean sweep of a variant's bugs is worth.
const MaxScore = 10.0

// Fallback selects what a rule inspects when its scope pattern does not
// match the submitted source.
type Fallback int

const (
	// FallbackEmpty treats the region as empty text on a scope miss.
	FallbackEmpty Fallback = iota
	// FallbackWholeSource inspects the entire source on a scope miss.
	FallbackWholeSource
)

// Combine selects how a rule folds its checks into one verdict.
type Combine int

const (
	CombineAll Combine = iota
	CombineAny
)

// Check is a single presence/absence assertion over a source region.
// Pattern is matched literally unless Regex is set. Absent inverts the
// verdict: the check passes when the pattern is NOT found.
type Check struct {
	Pattern string
	Regex   *regexp.Regexp
	Absent  bool
}

// Eval reports whether the check holds for the given region.
func (c Check) Eval(region string) bool {
	var found bool
	if c.Regex != nil {
		found = c.Regex.MatchString(region)
	} else {
		found = strings.Contains(region, c.Pattern)
	}
	if c.Absent {
		return !found
	}
	return found
}

// BugRule is one gradable assertion about the submitted source text.
// Ordinal is the bug's stable point identity within its variant. Scope
// isolates a region (typically one function body); nil means whole source.
//
// Rules never execute or parse the candidate code. Structural text
// inspection is the grading contract; false positives and negatives are
// accepted for this tool's purpose.
type BugRule struct {
	Ordinal       int
	Scope         *regexp.Regexp
	ScopeFallback Fallback
	Combine       Combine
	Checks        []Check
	PassMessage   string
	FailMessage   string
}

// Region applies the rule's scope to the source, degrading per the
// configured fallback when the scope does not match.
func (r BugRule) Region(source string) string {
	if r.Scope == nil {
		return source
	}
	m := r.Scope.FindStringSubmatch(source)
	if m == nil {
		if r.ScopeFallback == FallbackWholeSource {
			return source
		}
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// Eval evaluates the rule's predicate over its extracted region.
// Pure function of the source text; identical input always yields the
// same verdict.
func (r BugRule) Eval(source string) bool {
	region := r.Region(source)
	if len(r.Checks) == 0 {
		return false
	}
	if r.Combine == CombineAny {
		for _, c := range r.Checks {
			if c.Eval(region) {
				return true
			}
		}
		return false
	}
	for _, c := range r.Checks {
		if !c.Eval(region) {
			return false
		}
	}
	return true
}

// RuleSet is one gradable challenge variant: an ordered list of bug rules
// plus the starter source handed to a fresh session.
type RuleSet struct {
	VariantID   string
	ChallengeID string
	Language    string
	StarterCode string
	Rules       []BugRule
}

// PointValue is the worth of one passed bug for this variant, defined as
// MaxScore divided by the variant's actual rule count.
func (rs RuleSet) PointValue() float64 {
	if len(rs.Rules) == 0 {
		return 0
	}
	return MaxScore / float64(len(rs.Rules))
}

// funcBody builds a scope regexp capturing the body of a named top-level
// function, up to the closing brace at column zero. Inner blocks close at
// deeper indentation and do not terminate the capture. Good enough for the
// starter-code shapes this catalog grades; rules fall back per their
// configured Fallback when a candidate reshapes the code.
func funcBody(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)function\s+` + name + `\s*\([^)]*\)\s*\{(.*?)\n\}`)
}

// methodBody is funcBody for class methods: the body closes at a brace
// indented by exactly two spaces.
func methodBody(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + name + `\s*\([^)]*\)\s*\{(.*?)\n  \}`)
}

// pyFuncBody captures the body of a Python def up to the next
// non-indented line.
func pyFuncBody(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)def\s+` + name + `\s*\([^)]*\):\n(.*?)(?:\n\S|\z)`)
}
