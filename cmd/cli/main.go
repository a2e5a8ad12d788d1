package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-intake/internal/config"
	"github.com/dvloznov/finance-intake/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globals holds the flags shared by every command.
type globals struct {
	configPath string
}

// load reads and validates the configuration.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "intake",
		Short:         "Financial document intake tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("INTAKE_CONFIG"), "Path to a YAML config file")

	root.AddCommand(
		newIngestCmd(g),
		newExtractCmd(g),
		newInspectCmd(g),
		newAuditSetupCmd(g),
	)
	return root
}

// newLogger writes to stderr so command output on stdout stays machine-readable.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: os.Stderr,
	})
}
