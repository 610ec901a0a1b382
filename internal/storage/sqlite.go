package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const cacheTTL = 5 * time.Minute

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry time.Time
	db          *sql.DB
	ruleCache   map[string]*model.StoredRuleSet
	dbPath      string
	cacheMutex  sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance. The path ":memory:" opens a
// private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection also keeps one in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:        db,
		dbPath:    dbPath,
		ruleCache: make(map[string]*model.StoredRuleSet),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the location of the database.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// getCachedRuleSet returns a recently loaded rule set, nil on a miss.
func (s *SQLiteStorage) getCachedRuleSet(id string) *model.StoredRuleSet {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.ruleCache = make(map[string]*model.StoredRuleSet)
		}
		return nil
	}

	rs := s.ruleCache[id]
	s.cacheMutex.RUnlock()
	return rs
}

func (s *SQLiteStorage) cacheRuleSet(rs *model.StoredRuleSet) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.ruleCache) == 0 {
		s.cacheExpiry = time.Now().Add(cacheTTL)
	}
	s.ruleCache[rs.ID] = rs
}

func (s *SQLiteStorage) evictRuleSet(id string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	delete(s.ruleCache, id)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveRuleSet(ctx context.Context, rs *model.StoredRuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRuleSet(rs); err != nil {
		return err
	}
	return t.storage.saveRuleSetTx(ctx, t.tx, rs)
}

func (t *sqliteTransaction) GetRuleSet(ctx context.Context, id string) (*model.StoredRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getRuleSetTx(ctx, t.tx, "id", id)
}

func (t *sqliteTransaction) GetRuleSetByName(ctx context.Context, name string) (*model.StoredRuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.getRuleSetTx(ctx, t.tx, "name", name)
}

func (t *sqliteTransaction) ListRuleSets(ctx context.Context, filter service.RuleSetFilter) ([]model.RuleSetSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listRuleSetsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) DeleteRuleSet(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.deleteRuleSetTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
