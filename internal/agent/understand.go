package agent

import (
	"context"
	"fmt"
)

// understand extracts the query intent and entities. Runs exactly once
// per run, on the small model.
func (a *Agent) understand(ctx context.Context, in UnderstandInput) (Understanding, error) {
	var wire understandingWire
	err := a.provider.GenerateStructured(ctx,
		buildUnderstandUserPrompt(in.Query, in.ConversationContext),
		understandSystemPrompt(a.name),
		a.routing.Small,
		&wire,
	)
	if err != nil {
		return Understanding{}, fmt.Errorf("understand: %w", err)
	}
	return wire.toUnderstanding(), nil
}
