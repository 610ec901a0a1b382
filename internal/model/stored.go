package model

import (
	"time"

	"github.com/Veraticus/seco/internal/dataset"
)

// RuleSetKind distinguishes single-label decision lists from multi-label rule sets.
type RuleSetKind string

// Rule set kinds.
const (
	RuleSetSingle     RuleSetKind = "single"
	RuleSetMultiLabel RuleSetKind = "multilabel"
)

// StoredRuleSet is a trained rule set together with the schema it was learned on.
// Schema is an empty dataset; every condition of Rules refers to its attributes.
type StoredRuleSet struct {
	CreatedAt    time.Time
	Schema       *dataset.Instances
	Rules        *RuleSet
	ID           string
	Name         string
	Kind         RuleSetKind
	Heuristic    string
	Labels       []string
	DecisionList bool
}

// Relation returns the name of the dataset the rule set was learned on.
func (s *StoredRuleSet) Relation() string {
	if s.Schema == nil {
		return ""
	}
	return s.Schema.Relation()
}

// RuleSetSummary is the listing form of a stored rule set.
type RuleSetSummary struct {
	CreatedAt time.Time
	ID        string
	Name      string
	Kind      RuleSetKind
	Relation  string
	Heuristic string
	Rules     int
}
