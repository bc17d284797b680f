package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// plan produces the next iteration's task list on the large model.
// Task IDs get an iteration prefix so they stay unique across the run;
// same-plan dependency references are rewritten to the prefixed form.
func (a *Agent) plan(ctx context.Context, in PlanInput) (*Plan, error) {
	var wire planWire
	err := a.provider.GenerateStructured(ctx,
		buildPlanUserPrompt(
			in.Query,
			in.Understanding.Intent,
			formatEntities(in.Understanding.Entities),
			formatPriorWork(in.PriorPlans, in.PriorResults),
			in.GuidanceFromReflection,
		),
		planSystemPrompt(a.name),
		a.routing.Large,
		&wire,
	)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	iteration := len(in.PriorPlans) + 1
	prefix := fmt.Sprintf("iter%d_", iteration)

	local := make(map[string]bool, len(wire.Tasks))
	for _, t := range wire.Tasks {
		local[t.ID] = true
	}

	out := &Plan{Summary: wire.Summary}
	for _, t := range wire.Tasks {
		taskType, _ := ParseTaskType(t.TaskType)
		task := &Task{
			ID:          prefix + t.ID,
			Description: t.Description,
			Status:      StatusPending,
			TaskType:    taskType,
		}
		for _, dep := range t.DependsOn {
			if local[dep] {
				task.DependsOn = append(task.DependsOn, prefix+dep)
			} else {
				// cross-iteration reference, already prefixed by its
				// own plan (or dangling, settled by the executor)
				task.DependsOn = append(task.DependsOn, dep)
			}
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out, nil
}

func formatEntities(entities []Entity) string {
	if len(entities) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s=%q", e.Type, e.Value))
	}
	return strings.Join(parts, ", ")
}

// formatPriorWork renders completed passes for the planner: the plan
// summary plus a checked/crossed line per task.
func formatPriorWork(plans []*Plan, results map[string]TaskResult) string {
	if len(plans) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range plans {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Pass %d: %s\n", i+1, p.Summary)
		for _, t := range p.Tasks {
			mark := "✗"
			if t.Status == StatusCompleted {
				mark = "✓"
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", mark, t.ID, t.Description)
			if r, ok := results[t.ID]; ok && r.Output != "" {
				fmt.Fprintf(&b, "    Result: %s\n", truncate(r.Output, 200))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back up to a rune boundary so the cut never splits a character
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
