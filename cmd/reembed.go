package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/revisio/revisio/internal/app"
	"github.com/revisio/revisio/internal/config"
	"github.com/revisio/revisio/internal/reembed"
)

var (
	reembedOwner    string
	reembedNotebook string
	reembedBatch    int
	reembedDryRun   bool
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Regenerate embeddings that no longer match the active model",
	Long: `Scans stored chunks for missing embeddings or embeddings whose
dimension differs from the configured model, and regenerates them in
batches. Without --owner the scan covers every owner. Use --dry-run to
count affected chunks without writing.`,
	RunE: runReembed,
}

func init() {
	reembedCmd.Flags().StringVar(&reembedOwner, "owner", "", "restrict migration to one owner (default: all owners)")
	reembedCmd.Flags().StringVar(&reembedNotebook, "notebook", "", "restrict migration to one notebook")
	reembedCmd.Flags().IntVar(&reembedBatch, "batch-size", 0, "chunks per batch (default 50)")
	reembedCmd.Flags().BoolVar(&reembedDryRun, "dry-run", false, "report what would change without writing")
	rootCmd.AddCommand(reembedCmd)
}

func runReembed(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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

	report, err := a.Migrator.Run(ctx, reembed.Options{
		OwnerID:    reembedOwner,
		NotebookID: reembedNotebook,
		BatchSize:  reembedBatch,
		DryRun:     reembedDryRun,
	})
	if err != nil {
		return fmt.Errorf("running migration: %w", err)
	}

	fmt.Printf("Scanned:          %d\n", report.Scanned)
	fmt.Printf("Needs migration:  %d\n", report.NeedsMigration)
	if reembedDryRun {
		fmt.Println("Dry run: no embeddings were written.")
		return nil
	}
	fmt.Printf("Migrated:         %d\n", report.Migrated)
	if len(report.Failed) > 0 {
		fmt.Printf("Failed:           %d\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s: %s\n", f.ChunkID, f.Message)
		}
	}
	return nil
}
