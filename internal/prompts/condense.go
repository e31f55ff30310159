package prompts

import "strconv"

// Prompt IDs used by the condensation engine.
const (
	CondenseSummaryID      = "condense.summary"
	CondenseFinalRequestID = "condense.final_request"
	CondenseContinuationID = "condense.continuation"
	CondenseExpansionID    = "condense.expansion"
)

func init() {
	registry := DefaultRegistry()

	registry.MustRegister(&Prompt{
		ID:      CondenseSummaryID,
		Version: PromptV1,
		Content: `You are a helpful AI assistant tasked with summarizing conversations.

Your task is to create a detailed summary of the conversation so far, paying close attention to the user's explicit requests and your previous actions.
This summary must capture technical details, code patterns and architectural decisions that are essential for continuing the work without losing context.

Before providing your final summary, walk through the conversation chronologically and identify:
- the user's explicit requests and intents
- your approach to each request
- key decisions, technical concepts and code patterns
- specific file names, code snippets, function signatures and file edits
- errors you ran into and how you fixed them
- anything the user told you to do differently

Your summary should include the following sections:

1. Primary Request and Intent: every explicit request and intent of the user, in detail.
2. Key Technical Concepts: technologies, frameworks and conventions discussed.
3. Files and Code Sections: files examined, modified or created, with full code snippets where they matter and why each file is important.
4. Errors and fixes: each error encountered and how it was resolved, including user feedback.
5. Problem Solving: problems solved and any ongoing troubleshooting.
6. Pending Tasks: tasks you have explicitly been asked to work on.
7. Current Work: precisely what was being worked on immediately before this summary, with file names and code snippets.
8. Next Step: the next step directly in line with the most recent explicit request. Include verbatim quotes from the most recent messages showing where you left off. Do not start on tangential requests.

Output only the summary of the conversation so far, without any additional commentary or explanation.`,
		Description: "System prompt for the condensing model call",
	})

	registry.MustRegister(&Prompt{
		ID:          CondenseFinalRequestID,
		Version:     PromptV1,
		Content:     "Summarize the conversation so far, as described in the prompt instructions.",
		Description: "Final user turn appended to the condensing request",
	})

	registry.MustRegister(&Prompt{
		ID:          CondenseContinuationID,
		Version:     PromptV1,
		Content:     "Please continue from the following summary:",
		Description: "Synthetic user turn placed before the latest summary",
	})

	registry.MustRegister(&Prompt{
		ID:      CondenseExpansionID,
		Version: PromptV1,
		Content: `Your summary is too short. It brings the context down to {{current_tokens}} tokens but the context must stay at or above {{target_tokens}} tokens.
Rewrite the summary with more detail: keep every section, add the code snippets, file names, decisions and open questions you left out.
Output only the expanded summary.`,
		Description: "Re-invocation asking for a longer summary",
	})
}

// Latest returns the content of the latest version of a registered prompt.
// It panics when the prompt is missing; every ID above is registered at init.
func Latest(id string) string {
	p, err := DefaultRegistry().GetLatest(id)
	if err != nil {
		panic(err)
	}
	return p.Content
}

// BuildExpansion renders the expansion prompt for the given token counts.
func BuildExpansion(currentTokens, targetTokens int) (string, error) {
	b, err := NewPromptBuilder(DefaultRegistry(), CondenseExpansionID)
	if err != nil {
		return "", err
	}
	return b.SetVariable("current_tokens", strconv.Itoa(currentTokens)).
		SetVariable("target_tokens", strconv.Itoa(targetTokens)).
		Build()
}
