package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/multilabel"
)

func (a *app) classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <rule-set> <data.csv>",
		Short: "Classify a CSV dataset with a stored rule set",
		Long: `Apply a stored rule set, given by ID or name, to every row of a CSV file.

Columns are matched to the stored schema by name. Predictions are written as CSV to
standard output; --evaluate additionally compares them with the values in the file.`,
		Args: cobra.ExactArgs(2),
		RunE: a.runClassify,
	}

	cmd.Flags().Bool("evaluate", false, "report accuracy against the classes in the file")

	return cmd
}

func (a *app) runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.load(cmd, nil)
	if err != nil {
		return err
	}
	evaluate, _ := cmd.Flags().GetBool("evaluate")

	store, err := openStorage(ctx, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stored, err := resolveRuleSet(ctx, store, args[0])
	if err != nil {
		return err
	}
	data, err := dataset.LoadCSVLike(args[1], stored.Schema, dataset.CSVOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	a.logger.Info("Classifying dataset",
		"rule_set", stored.Name,
		"kind", stored.Kind,
		"instances", data.Len())

	out := cmd.OutOrStdout()
	if stored.Kind == model.RuleSetMultiLabel {
		return classifyMultiLabel(out, stored, data, evaluate)
	}

	class, err := data.ClassAttribute()
	if err != nil {
		return fmt.Errorf("stored rule set has no class: %w", err)
	}
	w := csv.NewWriter(out)
	if err := w.Write([]string{"row", class.Name()}); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	for i, inst := range data.All() {
		prediction := dataset.DefaultMissing
		if v, ok := stored.Rules.Classify(inst); ok {
			prediction = class.Format(v)
		}
		if err := w.Write([]string{strconv.Itoa(i + 1), prediction}); err != nil {
			return fmt.Errorf("failed to write predictions: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}

	if !evaluate {
		return nil
	}
	rep, err := evaluation.Evaluate(stored.Rules, data)
	if err != nil {
		return fmt.Errorf("failed to evaluate rules: %w", err)
	}
	fmt.Fprintln(out, cli.RenderReport(rep))
	return nil
}

func classifyMultiLabel(out io.Writer, stored *model.StoredRuleSet, data *dataset.Instances, evaluate bool) error {
	labels, err := multilabel.NewLabels(data, stored.Labels)
	if err != nil {
		return err
	}
	clf := multilabel.NewClassifier(labels, stored.Rules, stored.DecisionList)

	w := csv.NewWriter(out)
	header := []string{"row"}
	for _, attr := range labels.Attributes() {
		header = append(header, attr.Name())
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	for i, inst := range data.All() {
		record := []string{strconv.Itoa(i + 1)}
		for j, v := range clf.Predict(inst) {
			if v < 0 {
				record = append(record, dataset.DefaultMissing)
				continue
			}
			record = append(record, labels.Attr(j).Value(v))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write predictions: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}

	if !evaluate {
		return nil
	}
	rep, err := evaluation.EvaluateMultiLabel(clf, data)
	if err != nil {
		return fmt.Errorf("failed to evaluate rules: %w", err)
	}
	fmt.Fprintln(out, cli.RenderMultiLabelReport(stored.Labels, rep))
	return nil
}
