package agent

import (
	"context"
	"fmt"
	"strings"
)

// answer streams the final response. Chunks go straight to the answer
// callback; the full text is never buffered here.
func (a *Agent) answer(ctx context.Context, queryID string, in AnswerInput, cb *Callbacks) error {
	sources, err := a.collectSources(ctx, queryID)
	if err != nil {
		a.logger.Printf("[ANSWER] source lookup failed: %v", err)
		sources = ""
	}

	stream, err := a.provider.Stream(ctx,
		buildAnswerUserPrompt(in.Query, formatTaskOutputs(in.CompletedPlans, in.TaskResults), sources),
		answerSystemPrompt(a.name),
		a.routing.Large,
	)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	cb.answerStart()
	for chunk := range stream.Chunks() {
		cb.answerStream(chunk)
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("answer stream: %w", err)
	}
	return nil
}

// formatTaskOutputs renders every task from every completed plan with
// its result, or the no-output marker when a task produced nothing.
func formatTaskOutputs(plans []*Plan, results map[string]TaskResult) string {
	var parts []string
	for _, p := range plans {
		for _, t := range p.Tasks {
			output := noOutputMarker
			if r, ok := results[t.ID]; ok && strings.TrimSpace(r.Output) != "" {
				output = r.Output
			}
			parts = append(parts, fmt.Sprintf("Task: %s\nOutput: %s", t.Description, output))
		}
	}
	if len(parts) == 0 {
		return "No tasks were executed."
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// collectSources renders the citation list gathered during execution.
func (a *Agent) collectSources(ctx context.Context, queryID string) (string, error) {
	pointers, err := a.store.Pointers(ctx, queryID)
	if err != nil {
		return "", err
	}
	seen := make(map[string]bool)
	var urls []string
	for _, p := range pointers {
		for _, u := range p.SourceURLs {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	if len(urls) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, u := range urls {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, u)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
