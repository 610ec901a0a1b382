package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/sweep"
)

var sweepFlags = map[string]string{
	"workers": "sweep.workers",
	"holdout": "sweep.holdout",
	"seed":    "learner.seed",
}

func (a *app) sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <data.csv>",
		Short: "Compare heuristics and beam widths on a CSV dataset",
		Long: `Train one decision list per combination of heuristic, heuristic parameter and
beam width, and rank the settings by their accuracy on a holdout split.

All other learner settings come from the configuration. Settings are trained
concurrently by --workers goroutines.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runSweep,
	}

	d := config.Defaults().Sweep
	cmd.Flags().String("class", "", "class column (default: last column)")
	cmd.Flags().StringSlice("heuristics", d.Heuristics, "heuristics to compare")
	cmd.Flags().Float64Slice("params", d.Parameters, "heuristic parameters to compare (default: each heuristic's default)")
	cmd.Flags().IntSlice("beam-widths", d.BeamWidths, "beam widths to compare")
	cmd.Flags().Int("workers", d.Workers, "settings trained concurrently")
	cmd.Flags().Float64("holdout", d.Holdout, "share of the data held out for evaluation (0: evaluate on the training data)")
	cmd.Flags().Int64("seed", config.DefaultLearner().Seed, "random seed")
	cmd.Flags().Bool("progress", false, "show a progress bar")
	cmd.Flags().Bool("save", false, "store the best rule set")
	cmd.Flags().String("name", "", "name of the stored rule set (default: <relation>-<heuristic>)")

	return cmd
}

func (a *app) runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.load(cmd, sweepFlags)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("heuristics") {
		cfg.Sweep.Heuristics, _ = cmd.Flags().GetStringSlice("heuristics")
	}
	if cmd.Flags().Changed("params") {
		cfg.Sweep.Parameters, _ = cmd.Flags().GetFloat64Slice("params")
	}
	if cmd.Flags().Changed("beam-widths") {
		cfg.Sweep.BeamWidths, _ = cmd.Flags().GetIntSlice("beam-widths")
	}
	class, _ := cmd.Flags().GetString("class")
	progress, _ := cmd.Flags().GetBool("progress")
	save, _ := cmd.Flags().GetBool("save")
	name, _ := cmd.Flags().GetString("name")

	var onResult func(sweep.Result)
	runner, err := sweep.NewRunner(cfg.Learner, cfg.Sweep,
		sweep.WithLogger(a.logger),
		sweep.WithProgress(func(res sweep.Result) {
			if onResult != nil {
				onResult(res)
			}
		}))
	if err != nil {
		return err
	}
	if progress {
		onResult = cli.SweepProgress(cmd.ErrOrStderr(), len(runner.Settings()))
	}

	data, err := loadDataset(args[0], dataset.CSVOptions{Class: class}, a.logger)
	if err != nil {
		return err
	}
	rep, err := runner.Run(ctx, data)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderSweep(rep))

	if rep.Best == nil {
		fmt.Fprintln(out, cli.FormatWarning("Every setting failed"))
		return nil
	}
	if !save {
		return nil
	}
	heuristic := rep.Best.Setting.Heuristic
	stored := &model.StoredRuleSet{
		Schema:    data.EmptyCopy(),
		Rules:     rep.Best.Rules,
		Name:      defaultName(name, data.Relation(), heuristic),
		Kind:      model.RuleSetSingle,
		Heuristic: heuristic,
	}
	if err := saveRuleSet(ctx, cfg.Storage.Path, stored); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved rule set %s (%s)", stored.Name, stored.ID)))
	return nil
}
