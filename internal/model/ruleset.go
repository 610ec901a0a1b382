package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/seco/internal/dataset"
)

// ErrRuleIndex is returned for rule positions outside the rule set.
var ErrRuleIndex = errors.New("rule index out of range")

// RuleSet is a decision list: rules are tried in order and the first rule covering an
// instance decides. The default rule applies when no rule covers the instance.
type RuleSet struct {
	defaultRule *Rule
	rules       []*Rule
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add appends a rule.
func (s *RuleSet) Add(r *Rule) {
	s.rules = append(s.rules, r)
}

// AddAll appends rules in order.
func (s *RuleSet) AddAll(rs []*Rule) {
	s.rules = append(s.rules, rs...)
}

// Set replaces the rule at position i.
func (s *RuleSet) Set(i int, r *Rule) error {
	if i < 0 || i >= len(s.rules) {
		return fmt.Errorf("%w: %d", ErrRuleIndex, i)
	}
	s.rules[i] = r
	return nil
}

// Remove deletes the rule at position i.
func (s *RuleSet) Remove(i int) error {
	if i < 0 || i >= len(s.rules) {
		return fmt.Errorf("%w: %d", ErrRuleIndex, i)
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}

// Len returns the number of rules, excluding the default rule.
func (s *RuleSet) Len() int { return len(s.rules) }

// At returns the rule at position i.
func (s *RuleSet) At(i int) *Rule { return s.rules[i] }

// Rules returns the rules in order, excluding the default rule.
func (s *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Default returns the default rule, nil when none is set.
func (s *RuleSet) Default() *Rule { return s.defaultRule }

// SetDefault sets the default rule.
func (s *RuleSet) SetDefault(r *Rule) { s.defaultRule = r }

// FirstMatch returns the position and rule of the first rule covering the instance. The
// default rule is returned with position -1; nil when nothing applies.
func (s *RuleSet) FirstMatch(inst *dataset.Instance) (int, *Rule) {
	for i, r := range s.rules {
		if r.Covers(inst) {
			return i, r
		}
	}
	return -1, s.defaultRule
}

// Classify returns the class value predicted for the instance. The boolean result is
// false when neither a rule nor the default rule applies.
func (s *RuleSet) Classify(inst *dataset.Instance) (float64, bool) {
	_, r := s.FirstMatch(inst)
	if r == nil {
		return dataset.Missing, false
	}
	c, ok := r.Head().Single()
	if !ok {
		return dataset.Missing, false
	}
	return c.Value, true
}

// Equal reports whether both rule sets hold the same rules and default rule, regardless
// of order. It is meant for verification, not for classification.
func (s *RuleSet) Equal(o *RuleSet) bool {
	if len(s.rules) != len(o.rules) {
		return false
	}
	if (s.defaultRule == nil) != (o.defaultRule == nil) {
		return false
	}
	if s.defaultRule != nil && !s.defaultRule.Equal(o.defaultRule) {
		return false
	}
	counts := make(map[string]int, len(s.rules))
	for _, r := range s.rules {
		counts[r.Key()]++
	}
	for _, r := range o.rules {
		k := r.Key()
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

func (s *RuleSet) String() string {
	var b strings.Builder
	for _, r := range s.rules {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	if s.defaultRule != nil {
		b.WriteString(s.defaultRule.String())
		b.WriteByte('\n')
	}
	return b.String()
}
