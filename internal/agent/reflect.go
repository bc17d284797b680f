package agent

import (
	"context"
	"fmt"
	"strings"
)

// reflect decides whether the gathered results answer the query. At the
// iteration bound it short-circuits to complete without a model call;
// that is the loop's mandatory terminal condition.
func (a *Agent) reflect(ctx context.Context, in ReflectInput) (ReflectionResult, error) {
	if in.Iteration >= a.maxIterations {
		return ReflectionResult{
			IsComplete: true,
			Reasoning:  fmt.Sprintf("Reached maximum iterations (%d). Proceeding with available data.", a.maxIterations),
		}, nil
	}

	var wire reflectionWire
	err := a.provider.GenerateStructured(ctx,
		buildReflectUserPrompt(
			in.Query,
			in.Understanding.Intent,
			formatPriorWork(in.CompletedPlans, in.TaskResults),
			in.Iteration,
			a.maxIterations,
		),
		reflectSystemPrompt(a.name),
		a.routing.Large,
		&wire,
	)
	if err != nil {
		return ReflectionResult{}, fmt.Errorf("reflect: %w", err)
	}
	return ReflectionResult{
		IsComplete:         wire.IsComplete,
		Reasoning:          wire.Reasoning,
		MissingInfo:        wire.MissingInfo,
		SuggestedNextSteps: wire.SuggestedNextSteps,
	}, nil
}

// guidanceFrom turns an incomplete reflection into the planner's
// guidance string for the next iteration.
func guidanceFrom(r ReflectionResult) string {
	parts := []string{r.Reasoning}
	if len(r.MissingInfo) > 0 {
		parts = append(parts, "Missing information: "+strings.Join(r.MissingInfo, "; "))
	}
	if strings.TrimSpace(r.SuggestedNextSteps) != "" {
		parts = append(parts, "Suggested next steps: "+r.SuggestedNextSteps)
	}
	return strings.Join(parts, "\n")
}
