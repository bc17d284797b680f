package agent

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

func newTestToolExecutor(t *testing.T, provider llm.Provider, registry *tools.Registry, emptyFails bool) (*toolExecutor, contextstore.Store) {
	t.Helper()
	store, err := contextstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &toolExecutor{
		provider:            provider,
		registry:            registry,
		store:               store,
		name:                "WildGoose",
		smallModel:          "gpt-4o-mini",
		emptySelectionFails: emptyFails,
		logger:              log.New(io.Discard, "", 0),
	}, store
}

func TestSelectToolsReturnsPendingCalls(t *testing.T) {
	provider := &stubProvider{
		onSelect: func(string) (toolSelectionWire, error) {
			return toolSelectionWire{ToolCalls: []toolCallWire{
				{Tool: "web_search", Args: map[string]interface{}{"query": "golang"}},
			}}, nil
		},
	}
	e, _ := newTestToolExecutor(t, provider, tools.NewRegistry(), false)

	calls, err := e.selectTools(context.Background(), mkTask("t1"), Understanding{})
	if err != nil {
		t.Fatalf("selectTools: %v", err)
	}
	if len(calls) != 1 || calls[0].Tool != "web_search" || calls[0].Status != StatusPending {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestSelectToolsEmptySelectionIsValid(t *testing.T) {
	provider := &stubProvider{
		onSelect: func(string) (toolSelectionWire, error) { return toolSelectionWire{}, nil },
	}
	e, _ := newTestToolExecutor(t, provider, tools.NewRegistry(), false)

	calls, err := e.selectTools(context.Background(), mkTask("t1"), Understanding{})
	if err != nil {
		t.Fatalf("selectTools: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("got %d calls, want 0", len(calls))
	}
}

func TestExecuteToolsFailureIsolation(t *testing.T) {
	bad := &stubTool{name: "bad", invoke: func(context.Context, map[string]interface{}) (tools.Result, error) {
		return tools.Result{}, errStub
	}}
	good := &stubTool{name: "good", invoke: func(context.Context, map[string]interface{}) (tools.Result, error) {
		return tools.Result{Output: "useful data", SourceURLs: []string{"https://example.com"}}, nil
	}}
	e, store := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(bad, good), false)

	task := mkTask("iter1_t1")
	task.TaskType = TaskUseTools
	task.ToolCalls = []*ToolCallStatus{
		{ToolCall: ToolCall{Tool: "bad"}, Status: StatusPending},
		{ToolCall: ToolCall{Tool: "good"}, Status: StatusPending},
	}

	ok := e.executeTools(context.Background(), task, "query1", nil)
	if !ok {
		t.Fatal("one successful call must make the task succeed")
	}
	if task.ToolCalls[0].Status != StatusFailed || task.ToolCalls[0].Error == "" {
		t.Errorf("failed call not recorded: %+v", task.ToolCalls[0])
	}
	if task.ToolCalls[1].Status != StatusCompleted || task.ToolCalls[1].Output != "useful data" {
		t.Errorf("successful call not recorded: %+v", task.ToolCalls[1])
	}
	if got := toolTaskOutput(task); got != "useful data" {
		t.Errorf("task output = %q", got)
	}

	// Only the successful call lands in the context store.
	ptrs, err := store.Pointers(context.Background(), "query1")
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(ptrs) != 1 || ptrs[0].ToolName != "good" {
		t.Fatalf("pointers = %+v", ptrs)
	}
	if len(ptrs[0].SourceURLs) != 1 {
		t.Errorf("source urls not persisted: %+v", ptrs[0])
	}
}

func TestExecuteToolsUnknownToolFailsOnlyThatCall(t *testing.T) {
	good := &stubTool{name: "good"}
	e, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(good), false)

	task := mkTask("iter1_t1")
	task.ToolCalls = []*ToolCallStatus{
		{ToolCall: ToolCall{Tool: "nonexistent"}, Status: StatusPending},
		{ToolCall: ToolCall{Tool: "good"}, Status: StatusPending},
	}

	if ok := e.executeTools(context.Background(), task, "query1", nil); !ok {
		t.Fatal("sibling success must make the task succeed")
	}
	if task.ToolCalls[0].Status != StatusFailed || !strings.Contains(task.ToolCalls[0].Error, "tool not found") {
		t.Errorf("unknown tool call = %+v", task.ToolCalls[0])
	}
	if good.invocations() != 1 {
		t.Errorf("good invoked %d times, want 1", good.invocations())
	}
}

func TestExecuteToolsAllFailed(t *testing.T) {
	bad := &stubTool{name: "bad", invoke: func(context.Context, map[string]interface{}) (tools.Result, error) {
		return tools.Result{}, errStub
	}}
	e, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(bad), false)

	task := mkTask("iter1_t1")
	task.ToolCalls = []*ToolCallStatus{{ToolCall: ToolCall{Tool: "bad"}, Status: StatusPending}}

	if ok := e.executeTools(context.Background(), task, "query1", nil); ok {
		t.Fatal("all calls failed, task must fail")
	}
	if got := toolTaskOutput(task); got != noOutputMarker {
		t.Errorf("output = %q, want marker", got)
	}
}

func TestExecuteToolsEmptySelectionPolicy(t *testing.T) {
	task := mkTask("iter1_t1")

	lenient, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(), false)
	if ok := lenient.executeTools(context.Background(), task, "query1", nil); !ok {
		t.Error("zero-call task should succeed under the lenient policy")
	}

	strict, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(), true)
	if ok := strict.executeTools(context.Background(), task, "query1", nil); ok {
		t.Error("zero-call task should fail under the strict policy")
	}
}

func TestExecuteToolsCancellationStopsNewCalls(t *testing.T) {
	tool := &stubTool{name: "slow"}
	e, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(tool), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := mkTask("iter1_t1")
	task.ToolCalls = []*ToolCallStatus{
		{ToolCall: ToolCall{Tool: "slow"}, Status: StatusPending},
		{ToolCall: ToolCall{Tool: "slow"}, Status: StatusPending},
	}

	if ok := e.executeTools(ctx, task, "query1", nil); ok {
		t.Fatal("cancelled task must not succeed")
	}
	if tool.invocations() != 0 {
		t.Errorf("tool invoked %d times after cancellation, want 0", tool.invocations())
	}
	for i, call := range task.ToolCalls {
		if call.Status != StatusFailed {
			t.Errorf("call %d status = %s, want failed", i, call.Status)
		}
	}
}

func TestExecuteToolsCallbackTransitions(t *testing.T) {
	good := &stubTool{name: "good", invoke: func(context.Context, map[string]interface{}) (tools.Result, error) {
		return tools.Result{Output: "done"}, nil
	}}
	e, _ := newTestToolExecutor(t, &stubProvider{}, tools.NewRegistry(good), false)

	var transitions []TaskStatus
	cb := &Callbacks{
		OnToolCallUpdate: func(taskID string, toolIndex int, status TaskStatus, output, errMsg string) {
			transitions = append(transitions, status)
		},
	}

	task := mkTask("iter1_t1")
	task.ToolCalls = []*ToolCallStatus{{ToolCall: ToolCall{Tool: "good"}, Status: StatusPending}}
	e.executeTools(context.Background(), task, "query1", cb)

	if len(transitions) != 2 || transitions[0] != StatusInProgress || transitions[1] != StatusCompleted {
		t.Errorf("transitions = %v, want [in_progress completed]", transitions)
	}
}
