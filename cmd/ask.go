package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/revisio/revisio/internal/app"
	"github.com/revisio/revisio/internal/config"
	"github.com/revisio/revisio/internal/query"
)

var (
	askOwner    string
	askNotebook string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over your stored material",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askOwner, "owner", "", "owner ID whose chunks are searched (required)")
	askCmd.Flags().StringVar(&askNotebook, "notebook", "", "restrict retrieval to one notebook")
	_ = askCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	question := strings.Join(args, " ")

	events := a.Executor.Execute(ctx, query.Request{
		OwnerID:    askOwner,
		NotebookID: askNotebook,
		Question:   question,
	})

	for ev := range events {
		switch e := ev.(type) {
		case query.Detected:
			if e.Kind == query.MultiHop.String() {
				fmt.Printf("Breaking the question into %d steps...\n", e.SubQuestionCount)
			}
		case query.StepStart:
			fmt.Printf("Step %d: %s\n", e.Index, e.SubQuestion)
		case query.SynthesisStart:
			fmt.Println("Synthesizing answer...")
		case query.QueryComplete:
			fmt.Println()
			fmt.Println(e.Answer)
		case query.Error:
			return fmt.Errorf("query failed: %s", e.Message)
		}
	}

	return ctx.Err()
}
