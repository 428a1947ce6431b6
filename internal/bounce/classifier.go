package bounce

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Rule maps a diagnostic code to a classification. A rule matches by
// case-insensitive substring, by regular expression, or by both when both are set.
type Rule struct {
	Name     string `yaml:"name" toml:"name"`
	Contains string `yaml:"contains,omitempty" toml:"contains"`
	Pattern  string `yaml:"pattern,omitempty" toml:"pattern"`
	Code     string `yaml:"code" toml:"code"`
	Reason   string `yaml:"reason" toml:"reason"`

	re       *regexp.Regexp
	contains string
}

var errRuleNoMatcher = errors.New("rule needs contains or pattern")

func (r *Rule) compile() error {
	if r.Contains == "" && r.Pattern == "" {
		return errRuleNoMatcher
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("compile pattern: %w", err)
		}
		r.re = re
	}
	r.contains = strings.ToLower(r.Contains)
	return nil
}

func (r *Rule) matches(raw, lowered string) bool {
	if r.re != nil && !r.re.MatchString(raw) {
		return false
	}
	if r.contains != "" && !strings.Contains(lowered, r.contains) {
		return false
	}
	return true
}

func (r *Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Contains
}

// Classifier evaluates an ordered rule table; the first matching rule wins.
type Classifier struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewClassifier compiles rules in order. An invalid rule fails the whole table.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{}
	if err := c.Extend(rules...); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("default bounce rules: %v", err))
	}
	return c
}

// Extend appends rules to the end of the table.
func (c *Classifier) Extend(rules ...Rule) error {
	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if err := rule.compile(); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, rule.label(), err)
		}
		compiled = append(compiled, rule)
	}
	c.mu.Lock()
	c.rules = append(c.rules, compiled...)
	c.mu.Unlock()
	return nil
}

// Rules returns a copy of the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Match returns the classification of the first matching rule.
func (c *Classifier) Match(raw string) (Classification, bool) {
	lowered := strings.ToLower(raw)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.rules {
		if c.rules[i].matches(raw, lowered) {
			return Classification{Code: c.rules[i].Code, Reason: c.rules[i].Reason}, true
		}
	}
	return Classification{}, false
}

// Classify never fails: a code that matches no rule is returned as its own reason
// with an empty code.
func (c *Classifier) Classify(raw string) Classification {
	if class, ok := c.Match(raw); ok {
		return class
	}
	return Unknown(raw)
}

// Unknown is the classification for diagnostic text no rule recognises.
func Unknown(raw string) Classification {
	return Classification{Code: "", Reason: strings.TrimSpace(raw)}
}
