package main

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/history"
	"github.com/ChamsBouzaiene/dodo-context/internal/journal"
	"github.com/ChamsBouzaiene/dodo-context/internal/session"
)

// previewLen caps message content in listings.
const previewLen = 72

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	st, err := env.loadTask(ctx)
	if err != nil {
		return err
	}

	if hint := restoreHint(st.Messages, targetTs); hint != "" {
		fmt.Println(hint)
		return nil
	}

	restored, ok := env.Journal.Restore(ctx, st.Task.ID, st.Messages, targetTs)
	if !ok {
		return fmt.Errorf("message %d not found in the journal of task %s", targetTs, st.Task.ID)
	}

	added := len(restored) - len(st.Messages)
	st.Messages = restored
	if err := env.Sessions.Save(ctx, st); err != nil {
		return err
	}
	fmt.Printf("Restored %d messages into task %s\n", added, st.Task.ID)
	return nil
}

// restoreHint explains why a restore is a no-op: the target is already stored.
// Returns "" when the target is absent and the journal must be consulted.
func restoreHint(msgs []engine.ChatMessage, ts int64) string {
	condense, truncation := history.ActiveIDs(msgs)
	for _, m := range msgs {
		if m.Ts != ts {
			continue
		}
		if _, ok := condense[m.CondenseParent]; ok && m.CondenseParent != "" {
			return fmt.Sprintf("Message %d is stored but hidden by summary %s; run remove-summary --id %s to show it again",
				ts, m.CondenseParent, m.CondenseParent)
		}
		if _, ok := truncation[m.TruncationParent]; ok && m.TruncationParent != "" {
			return fmt.Sprintf("Message %d is stored but hidden by truncation marker %s", ts, m.TruncationParent)
		}
		return fmt.Sprintf("Message %d is already present", ts)
	}
	return ""
}

func runRewind(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	st, err := env.loadTask(ctx)
	if err != nil {
		return err
	}

	before := len(st.Messages)
	st.Messages = history.RewindTo(st.Messages, targetTs)
	if err := env.Sessions.Save(ctx, st); err != nil {
		return err
	}
	fmt.Printf("Dropped %d messages at or after %d\n", before-len(st.Messages), targetTs)
	return nil
}

func runRemoveSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	st, err := env.loadTask(ctx)
	if err != nil {
		return err
	}

	msgs, ok := history.RemoveSummary(st.Messages, condenseID)
	if !ok {
		return fmt.Errorf("no summary %s in task %s", condenseID, st.Task.ID)
	}
	st.Messages = msgs
	if err := env.Sessions.Save(ctx, st); err != nil {
		return err
	}
	fmt.Printf("Removed summary %s; %d messages visible\n", condenseID, len(history.Effective(msgs)))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	st, err := env.loadTask(ctx)
	if err != nil {
		return err
	}
	stats, err := env.Journal.Stats(ctx, st.Task.ID)
	if err != nil {
		log.Printf("⚠️  Failed to read journal: %v", err)
	}

	fmt.Print(inspectReport(st, stats, time.Now()))
	return nil
}

// inspectReport renders a task's stored log and journal state.
func inspectReport(st *session.TaskState, stats journal.Stats, now time.Time) string {
	var sb strings.Builder
	visible := history.Effective(st.Messages)
	condense, truncation := history.ActiveIDs(st.Messages)

	fmt.Fprintf(&sb, "Task:      %s %s\n", st.Task.ID, st.Task.Title)
	fmt.Fprintf(&sb, "Messages:  %d stored, %d visible\n", len(st.Messages), len(visible))
	fmt.Fprintf(&sb, "Context:   %d tokens, total cost $%.4f\n", st.Task.TotalTokens, st.Task.TotalCost)
	fmt.Fprintf(&sb, "Summaries: %s\n", joinIDs(condense))
	fmt.Fprintf(&sb, "Markers:   %s\n", joinIDs(truncation))

	if stats.Entries > 0 {
		fmt.Fprintf(&sb, "Journal:   v%d, %d entries (%d manual, %d auto), %d removed messages, %s, last %s ago\n",
			stats.Version, stats.Entries, stats.Manual, stats.Auto, stats.Removed,
			units.HumanSize(float64(stats.Bytes)), units.HumanDuration(now.Sub(stats.Newest)))
	} else {
		fmt.Fprintln(&sb, "Journal:   empty")
	}
	sb.WriteString("\n")

	for _, m := range st.Messages {
		flag := " "
		if history.IsHidden(m, condense, truncation) {
			flag = "-"
		}
		kind := string(m.Role)
		switch {
		case m.IsSummary:
			kind = "summary:" + m.CondenseID
		case m.IsTruncationMarker:
			kind = "marker:" + m.TruncationID
		}
		fmt.Fprintf(&sb, "%s %d  %-12s %s\n", flag, m.Ts, kind, preview(m.Content))
	}
	return sb.String()
}

func joinIDs(ids map[string]struct{}) string {
	if len(ids) == 0 {
		return "none"
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > previewLen {
		return content[:previewLen-3] + "..."
	}
	return content
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if taskID == "" {
		return fmt.Errorf("--task is required")
	}
	if env.Index == nil {
		return fmt.Errorf("journal index is unavailable")
	}

	if reindex {
		j, err := env.Journal.Load(ctx, taskID)
		if err != nil {
			return err
		}
		if err := env.Index.IndexJournal(taskID, j); err != nil {
			return err
		}
		log.Printf("✅ Indexed %d removed messages", j.RemovedCount())
	}

	hits, err := env.Index.Search(taskID, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%d  %-9s  summary %s  score %.2f\n", h.Ts, h.Role, h.CondenseID, h.Score)
	}
	fmt.Println("\nRun `condense restore --task", taskID, "--ts <ts>` to bring a message back.")
	return nil
}
