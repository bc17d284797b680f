package agent

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errUnreachable marks tasks that can never become ready: their
// dependency chain contains a cycle or a dangling reference.
var errUnreachable = errors.New("task has unresolvable dependencies")

// executeTasks drives one plan to completion in dependency waves. Each
// round it gathers every pending task whose dependencies have settled,
// runs the whole wave concurrently, then recomputes. Per-task failures
// are absorbed into the results map; when no pending task can become
// ready the survivors are marked failed instead of hanging.
func (a *Agent) executeTasks(ctx context.Context, plan *Plan, query, queryID string, understanding Understanding, priorResults map[string]TaskResult, cb *Callbacks) map[string]TaskResult {
	var mu sync.Mutex
	results := make(map[string]TaskResult)

	// settled covers this plan's finished tasks plus every prior
	// iteration's task, so cross-iteration dependencies resolve.
	settled := make(map[string]bool, len(priorResults))
	for id := range priorResults {
		settled[id] = true
	}

	done := 0
	for done < len(plan.Tasks) {
		ready := readyTasks(plan.Tasks, settled)

		if len(ready) == 0 {
			for _, t := range pendingTasks(plan.Tasks, settled) {
				t.Status = StatusFailed
				settled[t.ID] = true
				results[t.ID] = TaskResult{TaskID: t.ID, Output: noOutputMarker}
				done++
				cb.taskFailed(t, errUnreachable)
				a.logger.Printf("[EXECUTOR] task %s unreachable: cyclic or dangling dependsOn %v", t.ID, t.DependsOn)
			}
			break
		}

		var wg sync.WaitGroup
		for _, task := range ready {
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()

				taskCtx, span := tracer.Start(ctx, "agent.task",
					trace.WithAttributes(
						attribute.String("task.id", t.ID),
						attribute.String("task.type", string(t.TaskType)),
					))
				defer span.End()

				t.Status = StatusInProgress
				cb.taskStart(t)

				mu.Lock()
				deps := a.dependencyResults(t, results, priorResults)
				mu.Unlock()

				result, err := a.executeTask(taskCtx, t, query, queryID, understanding, deps, cb)

				mu.Lock()
				defer mu.Unlock()
				settled[t.ID] = true
				done++
				if err != nil {
					t.Status = StatusFailed
					results[t.ID] = TaskResult{TaskID: t.ID, Output: noOutputMarker}
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					cb.taskFailed(t, err)
					a.logger.Printf("[EXECUTOR] task %s failed: %v", t.ID, err)
					return
				}
				t.Status = StatusCompleted
				results[t.ID] = result
				span.SetStatus(codes.Ok, "completed")
				cb.taskComplete(t, result)
				a.logger.Printf("[EXECUTOR] task %s completed", t.ID)
			}(task)
		}
		wg.Wait()
	}

	return results
}

// dependencyResults snapshots the settled results a task's dependencies
// produced, in this plan or a prior iteration. Call with the results
// mutex held.
func (a *Agent) dependencyResults(t *Task, results, priorResults map[string]TaskResult) map[string]TaskResult {
	deps := make(map[string]TaskResult, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		if r, ok := results[dep]; ok {
			deps[dep] = r
		} else if r, ok := priorResults[dep]; ok {
			deps[dep] = r
		}
	}
	return deps
}

// executeTask dispatches a single task down the tool or reasoning path.
func (a *Agent) executeTask(ctx context.Context, t *Task, query, queryID string, understanding Understanding, deps map[string]TaskResult, cb *Callbacks) (TaskResult, error) {
	switch t.TaskType {
	case TaskUseTools:
		calls, err := a.tools.selectTools(ctx, t, understanding)
		if err != nil {
			return TaskResult{}, err
		}
		t.ToolCalls = calls
		if ok := a.tools.executeTools(ctx, t, queryID, cb); !ok {
			return TaskResult{}, errors.New("all tool calls failed")
		}
		return TaskResult{TaskID: t.ID, Output: toolTaskOutput(t)}, nil

	case TaskReason:
		return a.reason(ctx, ReasonInput{
			Query:       query,
			Task:        t,
			ContextData: dependencyContext(t, deps),
		})

	default:
		return TaskResult{}, errors.New("unknown task type: " + string(t.TaskType))
	}
}
