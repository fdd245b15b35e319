package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cardmill/internal/adapters/tracker"
	"cardmill/internal/config"
	"cardmill/internal/core/domain/ports"
	"cardmill/internal/core/service"
)

var rootCmd = &cobra.Command{
	Use:   "cardmill",
	Short: "Generate flashcards from lesson notes",
	Long:  "Cardmill fetches lesson notes from Notion, synthesizes each lesson into markdown (including content extracted from images), generates flashcards with an LLM, and adds them to a Noji deck. Processed lessons are checkpointed so re-runs only pick up new lessons.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch()
	},
}

var resetCmd = &cobra.Command{
	Use:     "reset",
	Aliases: []string{"clear"},
	Short:   "Clear the processing state and start fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		state, err := tracker.NewFileProcessingStore(cfg.StateFilePath)
		if err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}

		printStats(state)
		if err := state.Reset(); err != nil {
			return fmt.Errorf("failed to reset state: %w", err)
		}

		fmt.Println("State cleared. The next run will process all lessons from scratch.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show processing progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		state, err := tracker.NewFileProcessingStore(cfg.StateFilePath)
		if err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}

		printStats(state)
		return nil
	},
}

func printStats(state ports.StateStore) {
	stats := state.Stats()
	fmt.Printf("Lessons processed: %d\n", stats.TotalProcessed)
	fmt.Printf("Total lessons found: %d\n", stats.TotalFound)
	fmt.Printf("Remaining: %d\n", stats.Remaining)
	fmt.Printf("Progress: %.1f%%\n", stats.ProgressPercent)
	if stats.IsComplete {
		fmt.Println("All lessons have been processed.")
	}
}

func runBatch() error {
	cfg := config.GetConfig()

	state, err := tracker.NewFileProcessingStore(cfg.StateFilePath)
	if err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}

	llmClient, err := service.CreateLLMClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	dest := service.CreateCardDestination(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
	defer cancel()

	// Startup gate: a misconfigured deck or token should fail the run
	// before any lesson is touched.
	log.Println("Checking flashcard service connectivity...")
	if err := dest.Ping(ctx); err != nil {
		return fmt.Errorf("flashcard service health check failed: %w", err)
	}

	synth := service.NewSynthesizer(service.CreateTextConverter(cfg), llmClient)
	worker := service.NewWorkerService(cfg, service.CreateBlockSource(cfg), synth, llmClient, dest, state)

	summary, err := worker.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\nSummary:")
	fmt.Printf("  Lessons processed: %d\n", summary.LessonsProcessed)
	fmt.Printf("  Cards created: %d\n", summary.CardsCreated)
	fmt.Printf("  Errors: %d\n", summary.Errors)
	printStats(state)
	return nil
}

func main() {
	rootCmd.AddCommand(resetCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("cardmill failed: %v", err)
	}
}
