// Package storage provides the data persistence layer for trained rule sets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/seco/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidRuleSet = errors.New("invalid rule set")
	ErrInvalidKind    = errors.New("invalid rule set kind")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRuleSet checks that a rule set can be stored and that every condition refers
// to an attribute of its schema.
func validateRuleSet(rs *model.StoredRuleSet) error {
	if rs == nil {
		return fmt.Errorf("%w: rule set", ErrNilParameter)
	}
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRuleSet)
	}
	switch rs.Kind {
	case model.RuleSetSingle, model.RuleSetMultiLabel:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, rs.Kind)
	}
	if rs.Schema == nil {
		return fmt.Errorf("%w: missing schema", ErrInvalidRuleSet)
	}
	if rs.Rules == nil {
		return fmt.Errorf("%w: missing rules", ErrInvalidRuleSet)
	}
	if rs.Kind == model.RuleSetMultiLabel && len(rs.Labels) == 0 {
		return fmt.Errorf("%w: multi-label rule set without labels", ErrInvalidRuleSet)
	}

	rules := rs.Rules.Rules()
	if def := rs.Rules.Default(); def != nil {
		rules = append(rules, def)
	}
	for i, r := range rules {
		conds := append(r.Body(), r.Head().Conditions()...)
		for _, c := range conds {
			if err := validateCondition(rs, c); err != nil {
				return fmt.Errorf("rule at index %d: %w", i, err)
			}
		}
	}
	return nil
}

func validateCondition(rs *model.StoredRuleSet, c model.Condition) error {
	if c.Attr == nil {
		return fmt.Errorf("%w: condition without attribute", ErrInvalidRuleSet)
	}
	idx := c.AttrIndex()
	if idx < 0 || idx >= rs.Schema.NumAttributes() || rs.Schema.Attribute(idx).Name() != c.Attr.Name() {
		return fmt.Errorf("%w: attribute %q is not part of the schema", ErrInvalidRuleSet, c.Attr.Name())
	}
	return nil
}
