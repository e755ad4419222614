// Package main is the crawler's entrypoint: a cobra root command with a
// "run" (drain-and-exit) and a "worker" (long-lived) subcommand, grounded on
// cmd/bd/main.go's signal-aware rootCtx/rootCancel idiom.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Signal-aware context for graceful shutdown, same package-var pattern
	// cmd/bd/main.go uses.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	seedFile       string
	keywordOverrides string
	concurrency    int64
	modeFlag       string
)

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Harvests and classifies German municipal BESS planning procedures",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&seedFile, "seeds", "seeds.yaml", "Path to the municipality seed YAML file")
	rootCmd.PersistentFlags().StringVar(&keywordOverrides, "keyword-overrides", "", "Optional path to a keyword-override TOML file")
	rootCmd.PersistentFlags().Int64Var(&concurrency, "concurrency", 8, "Global worker pool concurrency")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Override CRAWL_MODE (fast|deep)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
