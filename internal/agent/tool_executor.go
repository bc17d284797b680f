package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

const noOutputMarker = "No output"

// toolExecutor resolves use_tools tasks: it asks the small model which
// tools to call, runs them, and persists successful outputs into the
// context store.
type toolExecutor struct {
	provider            llm.Provider
	registry            *tools.Registry
	store               contextstore.Store
	name                string
	smallModel          string
	taskTimeout         time.Duration
	emptySelectionFails bool
	logger              *log.Logger
}

// selectTools asks the model to pick tools for the task. An empty
// selection is a valid response, not an error.
func (e *toolExecutor) selectTools(ctx context.Context, task *Task, understanding Understanding) ([]*ToolCallStatus, error) {
	var wire toolSelectionWire
	err := e.provider.GenerateStructured(ctx,
		buildToolSelectionPrompt(task.Description, formatEntities(understanding.Entities)),
		toolSelectionSystemPrompt(e.registry.Descriptions()),
		e.smallModel,
		&wire,
	)
	if err != nil {
		return nil, fmt.Errorf("select tools for %s: %w", task.ID, err)
	}

	calls := make([]*ToolCallStatus, 0, len(wire.ToolCalls))
	for _, c := range wire.ToolCalls {
		calls = append(calls, &ToolCallStatus{
			ToolCall: ToolCall{Tool: c.Tool, Args: c.Args},
			Status:   StatusPending,
		})
	}
	return calls, nil
}

// executeTools runs the task's selected tool calls in order, updating
// each call's status in place and firing the tool-call callback on
// every transition. A failed call never aborts its siblings; the
// context is checked between calls so cancellation stops new calls
// from starting. Returns true when at least one call completed, or,
// for a zero-call task, per the empty-selection policy.
func (e *toolExecutor) executeTools(ctx context.Context, task *Task, queryID string, cb *Callbacks) bool {
	if len(task.ToolCalls) == 0 {
		return !e.emptySelectionFails
	}

	succeeded := 0
	for i, call := range task.ToolCalls {
		if err := ctx.Err(); err != nil {
			call.Status = StatusFailed
			call.Error = err.Error()
			cb.toolCallUpdate(task.ID, i, StatusFailed, "", call.Error)
			continue
		}

		call.Status = StatusInProgress
		cb.toolCallUpdate(task.ID, i, StatusInProgress, "", "")

		output, sourceURLs, err := e.invoke(ctx, call)
		if err != nil {
			call.Status = StatusFailed
			call.Error = err.Error()
			cb.toolCallUpdate(task.ID, i, StatusFailed, "", call.Error)
			e.logger.Printf("[TOOLS] task %s call %d (%s) failed: %v", task.ID, i, call.Tool, err)
			continue
		}

		call.Status = StatusCompleted
		call.Output = output
		cb.toolCallUpdate(task.ID, i, StatusCompleted, output, "")
		succeeded++

		if _, err := e.store.Put(ctx, contextstore.Record{
			QueryID:    queryID,
			TaskID:     task.ID,
			ToolName:   call.Tool,
			Output:     output,
			SourceURLs: sourceURLs,
		}); err != nil {
			e.logger.Printf("[TOOLS] task %s: context save failed: %v", task.ID, err)
		}
	}
	return succeeded > 0
}

func (e *toolExecutor) invoke(ctx context.Context, call *ToolCallStatus) (string, []string, error) {
	tool, err := e.registry.Get(call.Tool)
	if err != nil {
		return "", nil, err
	}

	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}

	res, err := tool.Invoke(ctx, call.Args)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("invoke %s: %w", call.Tool, err)
	}
	return res.Output, res.SourceURLs, nil
}

// toolTaskOutput concatenates the successful call outputs for the
// task's result, falling back to the no-output marker.
func toolTaskOutput(task *Task) string {
	var parts []string
	for _, call := range task.ToolCalls {
		if call.Status == StatusCompleted && strings.TrimSpace(call.Output) != "" {
			parts = append(parts, call.Output)
		}
	}
	if len(parts) == 0 {
		return noOutputMarker
	}
	return strings.Join(parts, "\n\n")
}
