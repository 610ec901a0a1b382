// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/seco/internal/model"
)

// RuleSetFilter defines filtering options for rule set listings.
type RuleSetFilter struct {
	Kind     model.RuleSetKind
	Relation string
	Limit    int
	Offset   int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Rule set operations
	SaveRuleSet(ctx context.Context, rs *model.StoredRuleSet) error
	GetRuleSet(ctx context.Context, id string) (*model.StoredRuleSet, error)
	GetRuleSetByName(ctx context.Context, name string) (*model.StoredRuleSet, error)
	ListRuleSets(ctx context.Context, filter RuleSetFilter) ([]model.RuleSetSummary, error)
	DeleteRuleSet(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
