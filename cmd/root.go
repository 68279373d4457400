// Package cmd implements the revisio command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/revisio/revisio/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "revisio",
	Short: "Revisio - retrieval-augmented study assistant",
	Long: `Revisio stores study material as embedded chunks and answers questions
over them with similarity search and multi-hop retrieval.

Run 'revisio serve' to start the HTTP API, or 'revisio ask' for one-shot
questions from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
// A .env file in the working directory is loaded first so API keys and
// DATABASE_URL can live beside the project during development.
func Execute() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("loading .env file", "error", err)
	}
	return rootCmd.Execute()
}

// newLogger builds the process-wide logger. The DEBUG environment
// variable (any value) enables debug level.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)
	return logger
}
