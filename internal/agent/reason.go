package agent

import (
	"context"
	"fmt"
	"strings"
)

// reason resolves a reason task on the large model using the outputs of
// its completed dependencies as context. A model failure propagates to
// the task executor, which records the task as failed.
func (a *Agent) reason(ctx context.Context, in ReasonInput) (TaskResult, error) {
	output, err := a.provider.Generate(ctx,
		buildReasonUserPrompt(in.Query, in.Task.Description, in.ContextData),
		reasonSystemPrompt(a.name),
		a.routing.Large,
	)
	if err != nil {
		return TaskResult{}, fmt.Errorf("reason task %s: %w", in.Task.ID, err)
	}
	return TaskResult{TaskID: in.Task.ID, Output: output}, nil
}

// dependencyContext gathers completed dependency outputs for a reason
// task. Failed or missing dependencies contribute nothing; when none
// produced output the model is told so instead of getting an empty
// prompt.
func dependencyContext(task *Task, results map[string]TaskResult) string {
	var parts []string
	for _, dep := range task.DependsOn {
		r, ok := results[dep]
		if !ok || strings.TrimSpace(r.Output) == "" || r.Output == noOutputMarker {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", dep, r.Output))
	}
	if len(parts) == 0 {
		return "No data available from prior tasks."
	}
	return strings.Join(parts, "\n\n")
}
