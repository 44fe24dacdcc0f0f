// Package main provides the keymine CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/richinex/keymine/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider    string
	concurrency int
	verbose     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "keymine",
		Short: "Iterative keyword demand mining with LLM-scored convergence",
		Long: `A CLI tool for mining keyword demand from autocomplete suggestions.

Two commands available:
- mine: Expand seed keywords through iterative discovery rounds until a
  dynamically decaying quality threshold is met
- simulate: Walk probabilistic user journeys over the suggestion space and
  score their fidelity against a measured behavior profile`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "openai", "LLM provider (openai, anthropic, alibaba, gemini)")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "c", 2, "Maximum seeds mined in parallel")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mineCmd() *cobra.Command {
	var goal string

	cmd := &cobra.Command{
		Use:   "mine [seed keyword]...",
		Short: "Mine keyword demand from one or more seed keywords",
		Long: `Mine keyword demand by iteratively expanding seed keywords.

Each round fetches autocomplete-style suggestions, deduplicates them against
everything already found, and scores the round across weighted quality
dimensions. The loop stops once the weighted score clears a threshold that
decays from strict to lenient across rounds, or when the iteration budget
runs out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				Goal:        goal,
				Concurrency: concurrency,
				Verbose:     verbose,
			}
			return cli.Mine(context.Background(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&goal, "goal", "g", "", "Discovery goal used by the quality scorer")

	return cmd
}

func simulateCmd() *cobra.Command {
	var journeys int
	var randomSeed int64
	var metricsPath string

	cmd := &cobra.Command{
		Use:   "simulate [seed keyword]",
		Short: "Simulate user journeys over the suggestion space",
		Long: `Simulate user search journeys starting from a seed keyword.

Each journey walks from query to query by probabilistically adopting ranked
suggestions, weighted by position, semantic distance, and query intent. The
aggregated behavior can be scored against a real-user profile supplied as a
JSON metrics file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				Concurrency: concurrency,
				Verbose:     verbose,
			}
			return cli.Simulate(context.Background(), args[0], journeys, randomSeed, metricsPath, opts)
		},
	}

	cmd.Flags().IntVarP(&journeys, "journeys", "n", 10, "Number of journeys to simulate")
	cmd.Flags().Int64Var(&randomSeed, "random-seed", 1, "Random seed for reproducible simulations")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Path to a real-user behavior metrics JSON file")

	return cmd
}
