package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlanPrefixesTaskIDs(t *testing.T) {
	provider := &stubProvider{
		onPlan: func(string) (planWire, error) {
			return planWire{
				Summary: "fetch then summarize",
				Tasks: []taskWire{
					{ID: "task_1", Description: "search", TaskType: "use_tools"},
					{ID: "task_2", Description: "summarize", TaskType: "reason", DependsOn: []string{"task_1"}},
				},
			}, nil
		},
	}
	a, _ := newTestAgent(t, provider, testAgentOpts{})

	plan, err := a.plan(context.Background(), PlanInput{Query: "q"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Tasks[0].ID != "iter1_task_1" {
		t.Errorf("task id = %q, want iter1_task_1", plan.Tasks[0].ID)
	}
	if got := plan.Tasks[1].DependsOn[0]; got != "iter1_task_1" {
		t.Errorf("dependency = %q, want iter1_task_1", got)
	}
}

func TestPlanKeepsCrossIterationDeps(t *testing.T) {
	provider := &stubProvider{
		onPlan: func(string) (planWire, error) {
			return planWire{
				Summary: "follow up",
				Tasks: []taskWire{
					{ID: "task_1", Description: "extend", TaskType: "reason", DependsOn: []string{"iter1_task_1"}},
				},
			}, nil
		},
	}
	a, _ := newTestAgent(t, provider, testAgentOpts{})

	prior := &Plan{Summary: "first pass", Tasks: []*Task{
		{ID: "iter1_task_1", Description: "search", Status: StatusCompleted, TaskType: TaskUseTools},
	}}
	plan, err := a.plan(context.Background(), PlanInput{
		Query:      "q",
		PriorPlans: []*Plan{prior},
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Tasks[0].ID != "iter2_task_1" {
		t.Errorf("task id = %q, want iter2_task_1", plan.Tasks[0].ID)
	}
	// Reference to a prior iteration's task must not be re-prefixed.
	if got := plan.Tasks[0].DependsOn[0]; got != "iter1_task_1" {
		t.Errorf("dependency = %q, want iter1_task_1", got)
	}
}

func TestPlanTaskIDsUniqueAcrossIterations(t *testing.T) {
	// The model reuses the same local IDs every pass; the iteration
	// prefix must keep the union duplicate free.
	provider := &stubProvider{
		onPlan: func(string) (planWire, error) {
			return planWire{
				Summary: "pass",
				Tasks: []taskWire{
					{ID: "task_1", Description: "a", TaskType: "use_tools"},
					{ID: "task_2", Description: "b", TaskType: "reason"},
				},
			}, nil
		},
	}
	a, _ := newTestAgent(t, provider, testAgentOpts{})

	var plans []*Plan
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		plan, err := a.plan(context.Background(), PlanInput{Query: "q", PriorPlans: plans})
		if err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
		for _, task := range plan.Tasks {
			if seen[task.ID] {
				t.Fatalf("duplicate task id %q across iterations", task.ID)
			}
			seen[task.ID] = true
		}
		plans = append(plans, plan)
	}
}

func TestPlanPropagatesModelError(t *testing.T) {
	provider := &stubProvider{
		onPlan: func(string) (planWire, error) {
			return planWire{}, errStub
		},
	}
	a, _ := newTestAgent(t, provider, testAgentOpts{})
	if _, err := a.plan(context.Background(), PlanInput{Query: "q"}); err == nil {
		t.Fatal("expected plan error to propagate")
	}
}

func TestFormatPriorWork(t *testing.T) {
	plans := []*Plan{{
		Summary: "gather data",
		Tasks: []*Task{
			{ID: "iter1_task_1", Description: "search products", Status: StatusCompleted},
			{ID: "iter1_task_2", Description: "fetch page", Status: StatusFailed},
		},
	}}
	results := map[string]TaskResult{
		"iter1_task_1": {TaskID: "iter1_task_1", Output: "found three products"},
	}

	got := formatPriorWork(plans, results)
	if !strings.Contains(got, "Pass 1: gather data") {
		t.Errorf("missing pass header: %q", got)
	}
	if !strings.Contains(got, "✓ iter1_task_1") {
		t.Errorf("missing completed mark: %q", got)
	}
	if !strings.Contains(got, "✗ iter1_task_2") {
		t.Errorf("missing failed mark: %q", got)
	}
	if !strings.Contains(got, "found three products") {
		t.Errorf("missing result text: %q", got)
	}
}

func TestFormatEntities(t *testing.T) {
	if got := formatEntities(nil); got != "none" {
		t.Errorf("empty entities = %q, want none", got)
	}
	got := formatEntities([]Entity{
		{Type: EntitySkillName, Value: "hello-skill"},
		{Type: EntityAction, Value: "greet"},
	})
	if !strings.Contains(got, `skill_name="hello-skill"`) || !strings.Contains(got, `action="greet"`) {
		t.Errorf("entities = %q", got)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	if got := truncate("short", 200); got != "short" {
		t.Errorf("short input changed: %q", got)
	}

	// "é" is two bytes; a cut at byte 2 would land mid-rune
	s := "héllo wörld"
	got := truncate(s, 2)
	if got != "h..." {
		t.Errorf("truncate(%q, 2) = %q, want %q", s, got, "h...")
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}

	long := strings.Repeat("日", 100)
	got = truncate(long, 200)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got)
	}
}
