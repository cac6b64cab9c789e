package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ksadov/backcast/internal/executor"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: backcast eval <job.yaml>")
	fmt.Fprintln(os.Stderr, "       backcast predict <job.yaml> [n_markets]")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 3 {
		usage()
	}
	command := os.Args[1]
	configPath := os.Args[2]

	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	switch command {
	case "eval":
		runEval(ctx, configPath)
	case "predict":
		limit := 10
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid market count: %s\n", os.Args[3])
				os.Exit(1)
			}
			limit = n
		}
		runPredict(ctx, configPath, limit)
	default:
		usage()
	}
}

func runEval(ctx context.Context, configPath string) {
	report, err := executor.RunFromConfig(ctx, configPath)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	s := report.Summary

	// Print summary
	fmt.Printf("\nJob: %s\n", report.JobName)
	fmt.Printf("Dataset: %s\n", report.DatasetName)
	fmt.Printf("Total examples: %d\n", s.TotalExamples)
	fmt.Printf("Scored: %d\n", s.ScoredExamples)
	fmt.Printf("Failed: %d\n", s.FailedExamples)
	fmt.Printf("Ambiguous skipped: %d\n", s.AmbiguousSkipped)
	fmt.Printf("Mean Brier: %.4f ± %.4f\n", s.MeanBrier, s.BrierCI95)
	fmt.Printf("Mean directional: %.4f\n", s.MeanDirectional)
	fmt.Printf("Failure rate: %.2f%%\n", s.FailureRate*100)
	fmt.Printf("Timeout rate: %.2f%%\n", s.TimeoutRate*100)
	fmt.Printf("Duration: %.2fs\n", report.TotalDurationSec)

	for kind, n := range s.FailuresByType {
		fmt.Printf("  %s: %d\n", kind, n)
	}

	if s.FailedExamples > 0 {
		os.Exit(1)
	}
}

func runPredict(ctx context.Context, configPath string, limit int) {
	predictions, err := executor.PredictFromConfig(ctx, configPath, limit)
	if err != nil {
		slog.Error("prediction failed", "error", err)
		os.Exit(1)
	}
	if len(predictions) == 0 {
		fmt.Println("No open binary markets found.")
		return
	}

	for _, p := range predictions {
		fmt.Printf("\n%s\n  %s\n", p.Question, p.URL)
		if p.Answer != nil {
			fmt.Printf("  predicted: %.3f", *p.Answer)
			if p.MarketProbability != nil {
				fmt.Printf("  (market: %.3f)", *p.MarketProbability)
			}
			fmt.Println()
			continue
		}
		if p.Failure != nil {
			fmt.Printf("  failed: %s (%s)\n", p.Failure.Message, p.Failure.Type)
		}
	}
}
