package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rule_sets (
					id TEXT PRIMARY KEY,
					name TEXT UNIQUE NOT NULL,
					kind TEXT NOT NULL CHECK (kind IN ('single', 'multilabel')),
					relation TEXT NOT NULL DEFAULT '',
					class_index INTEGER NOT NULL DEFAULT -1,
					heuristic TEXT NOT NULL DEFAULT '',
					labels TEXT,
					decision_list INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rule_sets_relation ON rule_sets(relation)`,

				`CREATE TABLE IF NOT EXISTS attributes (
					rule_set_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					nominal_values TEXT,
					PRIMARY KEY (rule_set_id, position),
					FOREIGN KEY (rule_set_id) REFERENCES rule_sets(id)
				)`,

				`CREATE TABLE IF NOT EXISTS rules (
					rule_set_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					head_kind TEXT NOT NULL,
					tp REAL NOT NULL DEFAULT 0,
					fp REAL NOT NULL DEFAULT 0,
					tn REAL NOT NULL DEFAULT 0,
					fn REAL NOT NULL DEFAULT 0,
					value REAL,
					PRIMARY KEY (rule_set_id, position),
					FOREIGN KEY (rule_set_id) REFERENCES rule_sets(id)
				)`,

				`CREATE TABLE IF NOT EXISTS conditions (
					rule_set_id TEXT NOT NULL,
					rule_position INTEGER NOT NULL,
					part TEXT NOT NULL CHECK (part IN ('head', 'body')),
					position INTEGER NOT NULL,
					attr_index INTEGER NOT NULL,
					value REAL NOT NULL,
					polarity INTEGER NOT NULL,
					PRIMARY KEY (rule_set_id, rule_position, part, position),
					FOREIGN KEY (rule_set_id, rule_position) REFERENCES rules(rule_set_id, position)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add rule set kind index",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX idx_rule_sets_kind ON rule_sets(kind, created_at)`); err != nil {
				return fmt.Errorf("failed to create kind index: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
