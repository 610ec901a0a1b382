package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
	"github.com/Veraticus/seco/internal/storage"
	"github.com/Veraticus/seco/internal/tui"
)

func (a *app) modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Manage stored rule sets",
	}
	cmd.AddCommand(a.modelsListCmd())
	cmd.AddCommand(a.modelsShowCmd())
	cmd.AddCommand(a.modelsDeleteCmd())
	cmd.AddCommand(a.modelsImportCmd())
	cmd.AddCommand(a.modelsBrowseCmd())
	return cmd
}

func (a *app) modelsBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse stored rule sets interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")

			store, err := openStorage(ctx, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return tui.Run(ctx, tui.Config{
				Storage: store,
				Filter:  service.RuleSetFilter{Kind: model.RuleSetKind(kind)},
			}, tui.RunOptions{Input: cmd.InOrStdin(), Output: cmd.OutOrStdout()})
		},
	}

	cmd.Flags().String("kind", "", "only rule sets of this kind (single, multilabel)")

	return cmd
}

func (a *app) modelsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored rule sets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			relation, _ := cmd.Flags().GetString("relation")
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStorage(ctx, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			list, err := store.ListRuleSets(ctx, service.RuleSetFilter{
				Kind:     model.RuleSetKind(kind),
				Relation: relation,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list rule sets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderModels(list))
			return nil
		},
	}

	cmd.Flags().String("kind", "", "only rule sets of this kind (single, multilabel)")
	cmd.Flags().String("relation", "", "only rule sets learned from this relation")
	cmd.Flags().Int("limit", 0, "maximum number of rule sets (0: all)")

	return cmd
}

func (a *app) modelsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-set>",
		Short: "Print a stored rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rs, err := resolveRuleSet(ctx, store, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			details := []string{
				"ID:        " + rs.ID,
				"Kind:      " + string(rs.Kind),
				"Relation:  " + rs.Relation(),
				"Heuristic: " + rs.Heuristic,
				"Created:   " + rs.CreatedAt.Format("2006-01-02 15:04"),
			}
			if len(rs.Labels) > 0 {
				details = append(details, "Labels:    "+strings.Join(rs.Labels, ", "))
			}
			fmt.Fprintln(out, cli.StyleTitle(cli.RuleIcon+" "+rs.Name))
			fmt.Fprintln(out, cli.SubtleStyle.Render(strings.Join(details, "\n")))
			fmt.Fprintln(out, cli.RenderRuleSet("Rules", rs.Rules))
			return nil
		},
	}
}

func (a *app) modelsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-set>",
		Short: "Delete a stored rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rs, err := resolveRuleSet(ctx, store, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteRuleSet(ctx, rs.ID); err != nil {
				return fmt.Errorf("failed to delete rule set: %w", err)
			}
			a.logger.Info("Deleted rule set", "id", rs.ID, "name", rs.Name)
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted rule set "+rs.Name))
			return nil
		},
	}
}

func (a *app) modelsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Store a rule set from a YAML document",
		Long: `Store a rule set exported with "seco export". A rule set with the same ID is
replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0]) //nolint:gosec // path is provided by the user
			if err != nil {
				return fmt.Errorf("failed to open document: %w", err)
			}
			defer func() { _ = f.Close() }()

			rs, err := storage.ImportYAML(f)
			if err != nil {
				return err
			}
			if err := saveRuleSet(ctx, cfg.Storage.Path, rs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported rule set %s (%s)", rs.Name, rs.ID)))
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <rule-set>",
		Short: "Write a stored rule set as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")

			store, err := openStorage(ctx, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rs, err := resolveRuleSet(ctx, store, args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return storage.ExportYAML(cmd.OutOrStdout(), rs)
			}

			f, err := os.Create(output) //nolint:gosec // path is provided by the user
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := storage.ExportYAML(f, rs); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", output, err)
			}
			a.logger.Info("Exported rule set", "name", rs.Name, "file", output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output file (default: standard output)")

	return cmd
}
