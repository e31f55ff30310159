package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	taskID     string
	storeFlag  string
	dirFlag    string
	repoFlag   string
	configFlag string

	// per-command flags
	targetTs     int64
	fraction     float64
	forced       bool
	customPrompt string
	windowFlag   int
	profileFlag  string
	minTokens    int
	searchLimit  int
	reindex      bool
	importTitle  string
	importSystem string
	importModel  string
	importTokens int
	condenseID   string

	rootCmd = &cobra.Command{
		Use:   "condense",
		Short: "Condense, truncate and restore the message history of long-running tasks",
		Long: `condense manages the bounded conversation history of a task: it summarizes
old turns, truncates when the context window overflows, and restores any
removed message from the task's journal.`,
		SilenceUsage: true,
	}

	tasksCmd = &cobra.Command{
		Use:   "tasks",
		Short: "List stored tasks",
		Args:  cobra.NoArgs,
		RunE:  runTasks,
	}
	importCmd = &cobra.Command{
		Use:   "import [messages.json]",
		Short: "Create or replace a task's message log from a JSON array of messages",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	// --- Shrinking ---
	summarizeCmd = &cobra.Command{
		Use:   "summarize",
		Short: "Condense the task history now (manual condense)",
		Args:  cobra.NoArgs,
		RunE:  runSummarize, // Defined in cmd_condense.go
	}
	manageCmd = &cobra.Command{
		Use:   "manage",
		Short: "Run the pre-request check: condense or truncate only if the budget requires it",
		Args:  cobra.NoArgs,
		RunE:  runManage,
	}
	truncateCmd = &cobra.Command{
		Use:   "truncate",
		Short: "Hide the oldest messages behind a sliding-window truncation marker",
		Args:  cobra.NoArgs,
		RunE:  runTruncate,
	}

	// --- Recovery ---
	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "Bring a condensed message back from the journal",
		Args:  cobra.NoArgs,
		RunE:  runRestore, // Defined in cmd_history.go
	}
	rewindCmd = &cobra.Command{
		Use:   "rewind",
		Short: "Drop every message at or after a timestamp",
		Args:  cobra.NoArgs,
		RunE:  runRewind,
	}
	removeSummaryCmd = &cobra.Command{
		Use:   "remove-summary",
		Short: "Delete one summary so the messages it replaced become visible again",
		Args:  cobra.NoArgs,
		RunE:  runRemoveSummary,
	}

	// --- Inspection ---
	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Show the stored log, what is visible and the journal state",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}
	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search condensed messages to find a timestamp to restore",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&taskID, "task", "", "Task id")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Storage backend: 'file' or 'sqlite' (default from config, else file)")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Storage directory (default: <user config dir>/dodo-context/tasks)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Project root holding .dodo/ overrides (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config-dir", "", "Override the user config directory")

	rootCmd.AddCommand(tasksCmd)

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importTitle, "title", "", "Task title")
	importCmd.Flags().StringVar(&importSystem, "system-prompt", "", "System prompt of the task")
	importCmd.Flags().StringVar(&importModel, "model", "", "Model the task talks to")
	importCmd.Flags().IntVar(&importTokens, "tokens", 0, "Context size reported by the last model call")

	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVar(&customPrompt, "prompt", "", "Custom condensing instructions (overrides config and .dodo/condense_prompt.md)")
	summarizeCmd.Flags().IntVar(&minTokens, "min-tokens", 0, "Expand summaries that leave less context than this")

	rootCmd.AddCommand(manageCmd)
	manageCmd.Flags().IntVar(&windowFlag, "window", 0, "Context window in tokens (default: from the model)")
	manageCmd.Flags().StringVar(&profileFlag, "profile", "", "Profile id for per-profile thresholds")
	manageCmd.Flags().IntVar(&minTokens, "min-tokens", 0, "Expand summaries that leave less context than this")

	rootCmd.AddCommand(truncateCmd)
	truncateCmd.Flags().Float64Var(&fraction, "fraction", 0.5, "Share of the visible history to hide")
	truncateCmd.Flags().BoolVar(&forced, "context-exceeded", false, "Apply the forced fraction used after a context-window error")

	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().Int64Var(&targetTs, "ts", 0, "Timestamp of the message to restore")
	_ = restoreCmd.MarkFlagRequired("ts")

	rootCmd.AddCommand(rewindCmd)
	rewindCmd.Flags().Int64Var(&targetTs, "ts", 0, "Drop messages with ts >= this")
	_ = rewindCmd.MarkFlagRequired("ts")

	rootCmd.AddCommand(removeSummaryCmd)
	removeSummaryCmd.Flags().StringVar(&condenseID, "id", "", "condenseId of the summary")
	_ = removeSummaryCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(inspectCmd)

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 10, "Maximum number of hits")
	searchCmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the task's search index from its journal first")
}
