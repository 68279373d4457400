package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/revisio/revisio/internal/app"
	"github.com/revisio/revisio/internal/config"
	"github.com/revisio/revisio/internal/ingest"
)

var (
	ingestOwner    string
	ingestNotebook string
	ingestTitle    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Chunk, embed and store a text file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner ID the document belongs to (required)")
	ingestCmd.Flags().StringVar(&ingestNotebook, "notebook", "", "notebook to file the document under")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (defaults to the file name)")
	_ = ingestCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	title := ingestTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	result, err := a.Ingester.Ingest(ctx, ingest.Document{
		OwnerID:    ingestOwner,
		NotebookID: ingestNotebook,
		Title:      title,
		Text:       string(data),
	})
	if err != nil {
		return fmt.Errorf("ingesting document: %w", err)
	}

	fmt.Printf("Stored %q as document %s (%d chunks)\n", title, result.DocumentID, result.Chunks)
	return nil
}
