package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/seco"
)

// pruneGrowingFraction is used when pruning is requested without a growing fraction.
const pruneGrowingFraction = 2.0 / 3.0

var trainFlags = map[string]string{
	"heuristic":           "learner.heuristic",
	"param":               "learner.heuristic_parameter",
	"selection-heuristic": "learner.selection_heuristic",
	"beam-width":          "learner.beam_width",
	"min-coverage":        "learner.min_coverage",
	"prune":               "learner.prune",
	"mdl":                 "learner.mdl",
	"optimizations":       "learner.optimizations",
	"growing-fraction":    "learner.growing_fraction",
	"seed":                "learner.seed",
}

func (a *app) trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <data.csv>",
		Short: "Learn a decision list from a CSV dataset",
		Long: `Learn an ordered rule list for every class of a CSV dataset.

Classes are covered from the least to the most frequent; the most frequent class
becomes the default rule. With --prune, rules are grown on part of the data and pruned
on the rest; --mdl enables RIPPER's description-length stopping and optimization.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runTrain,
	}

	d := config.DefaultLearner()
	cmd.Flags().String("class", "", "class column (default: last column)")
	cmd.Flags().String("heuristic", d.Heuristic, "rule evaluation heuristic")
	cmd.Flags().Float64("param", d.HeuristicParameter, "heuristic parameter (NaN: heuristic default)")
	cmd.Flags().String("selection-heuristic", d.SelectionHeuristic, "heuristic choosing RIPPER variants")
	cmd.Flags().Int("beam-width", d.BeamWidth, "candidate rules kept per refinement round")
	cmd.Flags().Float64("min-coverage", d.MinCoverage, "minimum positive weight a rule must cover")
	cmd.Flags().Bool("prune", d.Prune, "apply reduced error pruning")
	cmd.Flags().Bool("mdl", d.MDL, "use RIPPER's MDL stopping and optimization")
	cmd.Flags().Int("optimizations", d.Optimizations, "RIPPER optimization passes")
	cmd.Flags().Float64("growing-fraction", d.GrowingFraction, "share of the data used to grow rules")
	cmd.Flags().Int64("seed", d.Seed, "random seed")
	cmd.Flags().String("test", "", "CSV file to evaluate on (default: the training data)")
	cmd.Flags().Bool("save", false, "store the learned rule set")
	cmd.Flags().String("name", "", "name of the stored rule set (default: <relation>-<heuristic>)")
	cmd.Flags().Bool("progress", false, "show a progress bar per class")

	return cmd
}

func (a *app) runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.load(cmd, trainFlags)
	if err != nil {
		return err
	}
	if (cfg.Learner.Prune || cfg.Learner.MDL) && cfg.Learner.GrowingFraction == 1 && !cmd.Flags().Changed("growing-fraction") {
		a.logger.Debug("Using default growing fraction for pruning", "growing_fraction", pruneGrowingFraction)
		cfg.Learner.GrowingFraction = pruneGrowingFraction
	}

	class, _ := cmd.Flags().GetString("class")
	testPath, _ := cmd.Flags().GetString("test")
	save, _ := cmd.Flags().GetBool("save")
	name, _ := cmd.Flags().GetString("name")
	progress, _ := cmd.Flags().GetBool("progress")

	data, err := loadDataset(args[0], dataset.CSVOptions{Class: class}, a.logger)
	if err != nil {
		return err
	}

	opts := []seco.Option{seco.WithLogger(a.logger)}
	if progress {
		opts = append(opts, seco.WithObserver(cli.NewProgressObserver(cmd.ErrOrStderr())))
	}
	learner, err := seco.NewLearner(cfg.Learner, opts...)
	if err != nil {
		return err
	}

	rules, err := learner.SeparateAndConquer(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to learn rules: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderRuleSet(cli.RuleIcon+" Decision list for "+data.Relation(), rules))

	eval, err := loadEvaluationSet(testPath, data, a.logger)
	if err != nil {
		return err
	}
	rep, err := evaluation.Evaluate(rules, eval)
	if err != nil {
		return fmt.Errorf("failed to evaluate rules: %w", err)
	}
	fmt.Fprintln(out, cli.RenderReport(rep))

	if !save {
		return nil
	}
	stored := &model.StoredRuleSet{
		Schema:    data.EmptyCopy(),
		Rules:     rules,
		Name:      defaultName(name, data.Relation(), learner.Heuristic().String()),
		Kind:      model.RuleSetSingle,
		Heuristic: learner.Heuristic().String(),
	}
	if err := saveRuleSet(ctx, cfg.Storage.Path, stored); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved rule set %s (%s)", stored.Name, stored.ID)))
	return nil
}
