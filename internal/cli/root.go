// Package cli implements the smartlife CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/config"
	"github.com/rcliao/smartlife/internal/logging"
	"github.com/rcliao/smartlife/internal/store"
)

var (
	configPath string
	formatFlag string
	verbose    bool

	cfg       *config.Config
	logger    = zerolog.Nop()
	logCloser io.Closer
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "smartlife",
	Short: "Daily planner, mood picks and a voice assistant",
	Long: "SmartLife keeps a local task planner, suggests songs and activities for a mood " +
		"and talks back through a speech pipeline. SQLite-backed, single binary.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $SMARTLIFE_CONFIG or ~/.smartlife/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("SMARTLIFE_CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath()
}

func setup(cmd *cobra.Command, args []string) error {
	if formatFlag != "json" && formatFlag != "text" {
		return fmt.Errorf("unknown format %q (want json or text)", formatFlag)
	}

	c, err := config.LoadFromPath(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", c.Path(), err)
	}

	l, closer, err := logging.New(logging.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    c.Logging.File,
	})
	if err != nil {
		return err
	}
	cfg, logger, logCloser = c, l, closer
	logger.Debug().Str("config", c.Path()).Msg("config loaded")
	return nil
}

func openTaskStore() (*store.TaskStore, error) {
	return store.OpenTaskStore(cfg.Data.TasksDB, logger)
}

// openMoodStore opens the catalog database and seeds it when seed is set.
func openMoodStore(cmd *cobra.Command, seed bool) (*store.MoodStore, error) {
	catalog, err := store.LoadCatalog(cfg.Data.Catalog)
	if err != nil {
		return nil, err
	}
	s, err := store.OpenMoodStore(cfg.Data.MoodsDB, catalog, logger)
	if err != nil {
		return nil, err
	}
	if seed {
		if _, err := s.EnsureSeeded(cmd.Context()); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	return s, nil
}

func textOutput() bool {
	return formatFlag == "text"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
