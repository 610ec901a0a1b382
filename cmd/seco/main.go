// Package main contains the seco CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/config"
)

var version = "dev"

// app carries the state shared by the commands of one root command.
type app struct {
	v       *viper.Viper
	logger  *slog.Logger
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: slog.Default()}
	config.SetDefaults(a.v)
	defaults := config.Defaults()

	rootCmd := &cobra.Command{
		Use:   "seco",
		Short: "📜 Separate-and-conquer rule learning",
		Long: `seco learns readable rule sets from tabular data.

It induces decision lists with configurable separate-and-conquer search (including
reduced error pruning and RIPPER-style MDL optimization) and multi-label rule sets
with a beam-searched covering algorithm. Trained rule sets are stored in SQLite and
can be exported as YAML.`,
		PersistentPreRunE: a.initConfig,
		SilenceUsage:      true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/seco/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", defaults.Logging.Level, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", defaults.Logging.Format, "log format (console, json)")
	rootCmd.PersistentFlags().String("db", defaults.Storage.Path, "rule set database")

	// Bind flags to viper
	_ = a.v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(a.trainCmd())
	rootCmd.AddCommand(a.classifyCmd())
	rootCmd.AddCommand(a.multiLabelCmd())
	rootCmd.AddCommand(a.sweepCmd())
	rootCmd.AddCommand(a.modelsCmd())
	rootCmd.AddCommand(a.exportCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func main() {
	handler := cli.NewInterruptHandler(os.Stderr)
	ctx := handler.HandleInterrupts(context.Background(), true)

	err := newRootCmd().ExecuteContext(ctx)
	handler.Stop()

	if err != nil {
		var userErr *common.UserError
		switch {
		case errors.As(err, &userErr):
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		case common.IsConfigError(err):
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "seco"))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	// Environment variables
	a.v.SetEnvPrefix("SECO")
	a.v.SetEnvKeyReplacer(config.EnvKeyReplacer())
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := a.setupLogging(cmd); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

func (a *app) setupLogging(cmd *cobra.Command) error {
	level, err := common.ParseLevel(a.v.GetString("logging.level"))
	if err != nil {
		return err
	}
	logger, err := common.NewLogger(cmd.ErrOrStderr(), level, a.v.GetString("logging.format"))
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)
	return nil
}

// load binds the command's flags to their configuration keys and decodes the
// configuration.
func (a *app) load(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	for name, key := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return config.Load(a.v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seco version %s\n", version)
		},
	}
}
