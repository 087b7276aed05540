package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/brlpulse/internal/config"
)

const (
	appName = "BRLPulse"
	version = "v1.0.0"
)

var (
	configPath string
	logFormat  string
	cfg        *config.Config
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "brlpulse",
		Short:   "Live BRL, bitcoin and gold quotes sourced from a search-grounded model",
		Version: version,
		Long: `BRLPulse asks a search-grounded generative model for the current bitcoin price,
the gold spot price and the USD/BRL rate, then shows them on a local dashboard
with a BRL converter and the web sources the model cited.

Set API_KEY (or GEMINI_API_KEY) in the environment or a .env file.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log output format (console|json)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newServeCmd(), newFetchCmd(), newConvertCmd())
	return rootCmd
}

// setup loads configuration and configures the global logger for every subcommand
func setup(cmd *cobra.Command, args []string) error {
	switch logFormat {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console":
	default:
		return fmt.Errorf("invalid --log-format %q (want console or json)", logFormat)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		loaded.LogLevel = lvl
	}

	level, err := zerolog.ParseLevel(strings.ToLower(loaded.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	cfg = loaded
	log.Debug().Str("config", configPath).Str("model", cfg.Provider.Model).Msg("Configuration loaded")
	return nil
}
