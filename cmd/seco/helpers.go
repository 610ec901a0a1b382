package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
	"github.com/Veraticus/seco/internal/storage"
)

// openStorage opens the rule-set database and brings its schema up to date.
func openStorage(ctx context.Context, path string) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// resolveRuleSet looks a stored rule set up by ID, then by name.
func resolveRuleSet(ctx context.Context, store service.Storage, ref string) (*model.StoredRuleSet, error) {
	rs, err := store.GetRuleSet(ctx, ref)
	if err == nil {
		return rs, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	rs, err = store.GetRuleSetByName(ctx, ref)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError(fmt.Sprintf("no stored rule set with ID or name %q", ref), err)
		}
		return nil, err
	}
	return rs, nil
}

func relationName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// loadDataset reads a CSV file, naming the relation after the file.
func loadDataset(path string, opts dataset.CSVOptions, logger *slog.Logger) (*dataset.Instances, error) {
	opts.Logger = logger
	if opts.Relation == "" {
		opts.Relation = relationName(path)
	}
	data, err := dataset.LoadCSV(path, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded dataset",
		"relation", data.Relation(),
		"instances", data.Len(),
		"attributes", data.NumAttributes())
	return data, nil
}

// loadEvaluationSet returns the dataset a trained model is evaluated on: the CSV file at
// path read with the schema of train, or train itself when no path is given.
func loadEvaluationSet(path string, train *dataset.Instances, logger *slog.Logger) (*dataset.Instances, error) {
	if path == "" {
		return train, nil
	}
	return dataset.LoadCSVLike(path, train, dataset.CSVOptions{Logger: logger})
}

// defaultName derives a rule-set name from the relation and heuristic.
func defaultName(name, relation, heuristic string) string {
	if name != "" {
		return name
	}
	return relation + "-" + heuristic
}

func saveRuleSet(ctx context.Context, path string, rs *model.StoredRuleSet) error {
	store, err := openStorage(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveRuleSet(ctx, rs); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return common.NewUserError(fmt.Sprintf("a rule set named %q already exists; choose another --name", rs.Name), err)
		}
		return fmt.Errorf("failed to save rule set: %w", err)
	}
	return nil
}
