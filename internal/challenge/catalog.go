package challenge

import (
	"fmt"
	"regexp"
)

// VariantInfo summarizes one gradable variant for catalog listings.
type VariantInfo struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	BugCount int    `json:"bug_count"`
}

// Info summarizes one challenge for the session-creation form.
type Info struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Variants []VariantInfo `json:"variants"`
}

// Catalog is the static, versioned table of gradable challenges. Adding a
// challenge is a data addition here, not a code branch anywhere else.
type Catalog struct {
	order      []string
	titles     map[string]string
	byVariant  map[string]RuleSet
	defaultVar map[string]string
}

// Variant returns the rule set for a variant identifier.
func (c *Catalog) Variant(id string) (RuleSet, bool) {
	rs, ok := c.byVariant[id]
	return rs, ok
}

// DefaultVariant returns the first registered variant of a challenge.
func (c *Catalog) DefaultVariant(challengeID string) (RuleSet, bool) {
	id, ok := c.defaultVar[challengeID]
	if !ok {
		return RuleSet{}, false
	}
	return c.byVariant[id], true
}

// List returns catalog entries in registration order.
func (c *Catalog) List() []Info {
	out := make([]Info, 0, len(c.order))
	for _, cid := range c.order {
		info := Info{ID: cid, Title: c.titles[cid]}
		for _, rs := range c.variantsOf(cid) {
			info.Variants = append(info.Variants, VariantInfo{
				ID:       rs.VariantID,
				Language: rs.Language,
				BugCount: len(rs.Rules),
			})
		}
		out = append(out, info)
	}
	return out
}

func (c *Catalog) variantsOf(challengeID string) []RuleSet {
	var out []RuleSet
	// Variant ids are "<challenge>:<language>"; keep default first.
	if def, ok := c.defaultVar[challengeID]; ok {
		out = append(out, c.byVariant[def])
		for id, rs := range c.byVariant {
			if rs.ChallengeID == challengeID && id != def {
				out = append(out, rs)
			}
		}
	}
	return out
}

// Register adds a challenge and its variants; the first variant becomes
// the challenge's default.
func (c *Catalog) Register(title string, sets ...RuleSet) {
	cid := sets[0].ChallengeID
	c.order = append(c.order, cid)
	c.titles[cid] = title
	for i, rs := range sets {
		c.byVariant[rs.VariantID] = rs
		if i == 0 {
			c.defaultVar[cid] = rs.VariantID
		}
	}
}

// VariantID builds the canonical "<challenge>:<language>" key.
func VariantID(challengeID, language string) string {
	return fmt.Sprintf("%s:%s", challengeID, language)
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		titles:     make(map[string]string),
		byVariant:  make(map[string]RuleSet),
		defaultVar: make(map[string]string),
	}
}

// Default builds the built-in challenge catalog.
func Default() *Catalog {
	c := NewCatalog()
	c.Register("Shopping Cart", shoppingCartJS(), shoppingCartPy())
	c.Register("Request Throttle", requestThrottleJS())
	return c
}

func shoppingCartJS() RuleSet {
	return RuleSet{
		VariantID:   VariantID("shopping-cart", "javascript"),
		ChallengeID: "shopping-cart",
		Language:    "javascript",
		StarterCode: shoppingCartJSStarter,
		Rules: []BugRule{
			{
				Ordinal:       1,
				Scope:         funcBody("calculateTotal"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`let\s+i\s*=\s*0`)}},
				PassMessage:   "calculateTotal visits every item",
				FailMessage:   "calculateTotal skips the first item in the cart",
			},
			{
				Ordinal:       2,
				Scope:         funcBody("applyDiscount"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`total\s*-\s*discount`)}},
				PassMessage:   "applyDiscount subtracts the discount",
				FailMessage:   "applyDiscount increases the total instead of reducing it",
			},
			{
				Ordinal:       3,
				Scope:         funcBody("formatPrice"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Pattern: "toFixed(2)"}},
				PassMessage:   "formatPrice renders two decimal places",
				FailMessage:   "formatPrice does not format to two decimal places",
			},
			{
				Ordinal:       4,
				Scope:         funcBody("isEligibleForFreeShipping"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`>=\s*50`)}},
				PassMessage:   "free shipping includes orders of exactly 50",
				FailMessage:   "an order of exactly 50 should qualify for free shipping",
			},
		},
	}
}

func shoppingCartPy() RuleSet {
	return RuleSet{
		VariantID:   VariantID("shopping-cart", "python"),
		ChallengeID: "shopping-cart",
		Language:    "python",
		StarterCode: shoppingCartPyStarter,
		Rules: []BugRule{
			{
				Ordinal:       1,
				Scope:         pyFuncBody("calculate_total"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`range\(\s*len\(items\)`)}},
				PassMessage:   "calculate_total visits every item",
				FailMessage:   "calculate_total skips the first item in the cart",
			},
			{
				Ordinal:       2,
				Scope:         pyFuncBody("apply_discount"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`total\s*-\s*discount`)}},
				PassMessage:   "apply_discount subtracts the discount",
				FailMessage:   "apply_discount increases the total instead of reducing it",
			},
			{
				Ordinal:       3,
				Scope:         pyFuncBody("format_price"),
				ScopeFallback: FallbackWholeSource,
				Combine:       CombineAny,
				Checks: []Check{
					{Pattern: ":.2f"},
					{Regex: regexp.MustCompile(`round\(\s*amount\s*,\s*2\s*\)`)},
				},
				PassMessage: "format_price renders two decimal places",
				FailMessage: "format_price does not format to two decimal places",
			},
			{
				Ordinal:       4,
				Scope:         pyFuncBody("is_eligible_for_free_shipping"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`>=\s*50`)}},
				PassMessage:   "free shipping includes orders of exactly 50",
				FailMessage:   "an order of exactly 50 should qualify for free shipping",
			},
		},
	}
}

func requestThrottleJS() RuleSet {
	return RuleSet{
		VariantID:   VariantID("request-throttle", "javascript"),
		ChallengeID: "request-throttle",
		Language:    "javascript",
		StarterCode: requestThrottleJSStarter,
		Rules: []BugRule{
			{
				Ordinal:       1,
				Scope:         methodBody("constructor"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`this\.wait\s*=`)}},
				PassMessage:   "wait initialized",
				FailMessage:   "the wait window is never initialized in the constructor",
			},
			{
				Ordinal:       2,
				Scope:         methodBody("constructor"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`this\.windowStart\s*=\s*Date\.now\(\)`)}},
				PassMessage:   "window start anchored to the current time",
				FailMessage:   "windowStart must start at the current time, not zero",
			},
			{
				Ordinal:       3,
				Scope:         methodBody("allow"),
				ScopeFallback: FallbackWholeSource,
				Combine:       CombineAll,
				Checks: []Check{
					{Pattern: "Date.now()"},
					{Pattern: "getSeconds", Absent: true},
				},
				PassMessage: "allow uses a monotonic-enough millisecond clock",
				FailMessage: "allow reads the seconds-of-minute clock, which wraps every minute",
			},
			{
				Ordinal:       4,
				Scope:         methodBody("allow"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`this\.count\s*=\s*0`)}},
				PassMessage:   "count resets when the window rolls over",
				FailMessage:   "count is never reset, so the throttle locks up permanently",
			},
			{
				Ordinal:       5,
				Scope:         methodBody("allow"),
				ScopeFallback: FallbackWholeSource,
				Checks:        []Check{{Regex: regexp.MustCompile(`this\.count\s*>=\s*this\.limit`)}},
				PassMessage:   "the limit itself is the last allowed request",
				FailMessage:   "off-by-one: the throttle admits limit+1 requests per window",
			},
		},
	}
}

const shoppingCartJSStarter = `// Shopping cart — fix the bugs until every check passes.

function calculateTotal(items) {
  let total = 0;
  for (let i = 1; i < items.length; i++) {
    total += items[i].price * items[i].quantity;
  }
  return total;
}

function applyDiscount(total, discount) {
  return total + discount;
}

function formatPrice(amount) {
  return '$' + amount;
}

function isEligibleForFreeShipping(total) {
  return total > 50;
}
`

const shoppingCartPyStarter = `# Shopping cart — fix the bugs until every check passes.

def calculate_total(items):
    total = 0
    for i in range(1, len(items)):
        total += items[i]["price"] * items[i]["quantity"]
    return total

def apply_discount(total, discount):
    return total + discount

def format_price(amount):
    return "$" + str(amount)

def is_eligible_for_free_shipping(total):
    return total > 50
`

const requestThrottleJSStarter = `// Request throttle — fix the bugs until every check passes.

class RequestThrottle {
  constructor(limit, windowMs) {
    this.limit = limit;
    this.count = 0;
    this.windowStart = 0;
  }

  allow() {
    const now = new Date().getSeconds();
    if (now - this.windowStart > this.wait) {
      this.windowStart = now;
    }
    if (this.count > this.limit) {
      return false;
    }
    this.count += 1;
    return true;
  }
}
`
