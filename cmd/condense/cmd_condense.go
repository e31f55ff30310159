package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/dodo-context/internal/condense"
	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/history"
	"github.com/ChamsBouzaiene/dodo-context/internal/session"
)

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	tasks, err := env.Sessions.List(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks stored in", env.Dir)
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%-36s  %4d msgs  %s  %s\n", t.ID, t.Messages, t.UpdatedAt.Format("2006-01-02 15:04"), t.Title)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if taskID == "" {
		return fmt.Errorf("--task is required")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read messages: %w", err)
	}
	var msgs []engine.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("failed to parse messages: %w", err)
	}

	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	task := session.Task{ID: taskID}
	if existing, err := env.Sessions.LoadTask(ctx, taskID); err == nil {
		task = *existing
	}
	if importTitle != "" {
		task.Title = importTitle
	}
	if importSystem != "" {
		task.SystemPrompt = importSystem
	}
	if importModel != "" {
		task.Model = importModel
	}
	if importTokens > 0 {
		task.TotalTokens = importTokens
	}

	if err := env.Sessions.Save(ctx, &session.TaskState{Task: task, Messages: msgs}); err != nil {
		return err
	}
	log.Printf("✅ Imported %d messages into task %s", len(msgs), taskID)
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
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
	me := env.prepareModel(ctx, st.Task.Model)

	prompt := customPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = env.Config.CustomCondensePrompt
	}
	minimum := minTokens
	if minimum == 0 {
		minimum = env.MinimumCondenseTokens
	}

	res := me.Manager.Condense(ctx, condense.SummarizeRequest{
		Messages:              st.Messages,
		Client:                me.Client,
		CondensingClient:      me.Condensing,
		SystemPrompt:          st.Task.SystemPrompt,
		TaskID:                st.Task.ID,
		PrevContextTokens:     st.Task.TotalTokens,
		CustomPrompt:          prompt,
		MinimumCondenseTokens: minimum,
	})

	st.Task.TotalCost += res.Cost
	if res.Err != nil {
		// Spent cost is kept even though the log is unchanged
		if err := env.Sessions.SaveTask(ctx, &st.Task); err != nil {
			log.Printf("⚠️  Failed to record cost: %v", err)
		}
		return fmt.Errorf("condense failed (%s): %s", engine.CondenseErrorClassOf(res.Err), res.Error)
	}

	st.Messages = res.Messages
	st.Task.TotalTokens = res.NewContextTokens
	if err := env.Sessions.Save(ctx, st); err != nil {
		return err
	}
	if res.JournalErr != nil {
		log.Printf("⚠️  Condensed, but the journal write failed; removed messages cannot be restored: %v", res.JournalErr)
	}

	fmt.Printf("Condensed task %s: summary %s, cost $%.4f, new context %d tokens\n",
		st.Task.ID, res.CondenseID, res.Cost, res.NewContextTokens)
	fmt.Println()
	fmt.Println(res.Summary)
	return nil
}

func runManage(cmd *cobra.Command, args []string) error {
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
	me := env.prepareModel(ctx, st.Task.Model)

	info := engine.GetModelInfo(me.Model)
	window := windowFlag
	if window == 0 {
		window = info.ContextWindow
	}
	profile := profileFlag
	if profile == "" {
		profile = st.Task.ProfileID
	}
	minimum := minTokens
	if minimum == 0 {
		minimum = env.MinimumCondenseTokens
	}

	res := me.Manager.Manage(ctx, condense.ManageRequest{
		Messages:              st.Messages,
		TotalTokens:           st.Task.TotalTokens,
		ContextWindow:         window,
		MaxOutputTokens:       info.MaxOutputTokens,
		Client:                me.Client,
		CondensingClient:      me.Condensing,
		SystemPrompt:          st.Task.SystemPrompt,
		TaskID:                st.Task.ID,
		CustomPrompt:          env.Config.CustomCondensePrompt,
		AutoCondense:          env.Config.AutoCondenseEnabled(),
		AutoCondensePercent:   env.Config.Percent(),
		ProfileThresholds:     env.Config.ProfileThresholds,
		ProfileID:             profile,
		MinimumCondenseTokens: minimum,
	})

	st.Task.TotalCost += res.Cost
	changed := res.CondenseID != "" || res.Truncated
	if changed {
		st.Messages = res.Messages
		if res.CondenseID != "" {
			st.Task.TotalTokens = res.NewContextTokens
		} else if n, err := engine.NewEstimatingCounter(me.Model).CountTokens(ctx, history.Effective(st.Messages)); err == nil {
			st.Task.TotalTokens = n
		}
		if err := env.Sessions.Save(ctx, st); err != nil {
			return err
		}
	} else if res.Cost > 0 {
		if err := env.Sessions.SaveTask(ctx, &st.Task); err != nil {
			log.Printf("⚠️  Failed to record cost: %v", err)
		}
	}

	switch {
	case res.CondenseID != "":
		fmt.Printf("Condensed: %d -> %d tokens (summary %s, cost $%.4f)\n", res.PrevContextTokens, res.NewContextTokens, res.CondenseID, res.Cost)
	case res.Truncated:
		fmt.Printf("Truncated (marker %s) at %d tokens\n", res.TruncationID, res.PrevContextTokens)
	default:
		fmt.Printf("No change needed at %d tokens (allowed %d)\n", res.PrevContextTokens, me.Manager.AllowedTokens(window, info.MaxOutputTokens))
	}
	if res.Error != "" {
		fmt.Printf("Condense error: %s\n", res.Error)
	}
	if res.JournalErr != nil {
		log.Printf("⚠️  Journal write failed: %v", res.JournalErr)
	}
	return nil
}

func runTruncate(cmd *cobra.Command, args []string) error {
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
	me := env.prepareModel(ctx, st.Task.Model)

	var tr history.TruncationResult
	if forced {
		tr = me.Manager.HandleContextWindowExceeded(ctx, st.Task.ID, st.Messages)
	} else {
		tr = me.Manager.Truncate(ctx, st.Task.ID, st.Messages, fraction)
	}
	if tr.Removed == 0 {
		fmt.Println("Nothing to truncate")
		return nil
	}

	st.Messages = tr.Messages
	if n, err := engine.NewEstimatingCounter(me.Model).CountTokens(ctx, history.Effective(st.Messages)); err == nil {
		st.Task.TotalTokens = n
	}
	if err := env.Sessions.Save(ctx, st); err != nil {
		return err
	}
	fmt.Printf("Hid %d messages behind truncation marker %s\n", tr.Removed, tr.TruncationID)
	return nil
}
