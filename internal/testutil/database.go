// Package testutil provides shared fixtures for tests that need a rule-set database
// or small example datasets.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
	"github.com/Veraticus/seco/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database and seeds it with rule sets.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.WeatherRuleSet(t, "weather-laplace"))
func SetupTestDB(t *testing.T, seed ...*model.StoredRuleSet) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	// Run migrations
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	for _, rs := range seed {
		db.MustSave(rs)
	}
	return db
}

// MustSave stores a rule set or fails the test.
func (db *TestDB) MustSave(rs *model.StoredRuleSet) *model.StoredRuleSet {
	db.t.Helper()
	if err := db.Storage.SaveRuleSet(context.Background(), rs); err != nil {
		db.t.Fatalf("failed to seed rule set %q: %v", rs.Name, err)
	}
	return rs
}

// WithTransaction executes the given function within a database transaction.
// The transaction is committed when fn succeeds and rolled back otherwise.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
