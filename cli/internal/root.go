package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/frankenergie/client"
	"github.com/devilmonastery/frankenergie/internal/config"
	"github.com/devilmonastery/frankenergie/internal/pkg/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// CliContext holds shared CLI context
type CliContext struct {
	Config *config.Config
	Client *client.Client
	Logger *slog.Logger
	Output string
}

// Global flags
var (
	configPath    string
	outputFormat  string
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "frank",
		Short:         "CLI for Frank Energie prices and account data",
		Long:          `A command line interface for the Frank Energie GraphQL API: market prices, costs, invoices and smart batteries.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setupLogging(cmd, cfg); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx.Config = cfg
			ctx.Output = outputFormat
			ctx.Logger = logger.WithCommand(slog.Default().With("component", "cli"), cmd.CommandPath())
			ctx.Logger.Debug("CLI started")

			if err := validateOutput(outputFormat); err != nil {
				return err
			}

			// config commands never talk to the API
			if cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
				cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
				return nil
			}

			ctx.Client, err = newClient(cfg, ctx.Logger)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
	}

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newPricesCommand())
	rootCmd.AddCommand(newUserPricesCommand())
	rootCmd.AddCommand(newSummaryCommand())
	rootCmd.AddCommand(newInvoicesCommand())
	rootCmd.AddCommand(newMeCommand())
	rootCmd.AddCommand(newBatteriesCommand())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: search ./frankenergie.yaml, /etc/frankenergie, ~/.config/frankenergie)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table",
		"Output format (table, json, yaml, markdown)")

	// Logging flags; unset ones fall back to the config file
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (text, json)")

	return rootCmd
}

// setupLogging configures the global logger from flags, falling back to cfg.Log
func setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	level := cfg.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	format := cfg.Log.Format
	if cmd.Flags().Changed("log-format") {
		format = logFormat
	}
	file := cfg.Log.File
	if cmd.Flags().Changed("log-file") {
		file = logFile
	}

	// Default to stderr logging unless file is specified
	toStderr := logToStderr || file == ""

	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:         logger.ParseLevel(level),
		LogFile:       file,
		LogToStderr:   toStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        format,
	})
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
