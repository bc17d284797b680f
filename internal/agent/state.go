package agent

import (
	"fmt"
)

// Phase identifies a stage of the orchestration pipeline.
type Phase string

const (
	PhaseUnderstand Phase = "understand"
	PhasePlan       Phase = "plan"
	PhaseExecute    Phase = "execute"
	PhaseReflect    Phase = "reflect"
	PhaseAnswer     Phase = "answer"
	PhaseComplete   Phase = "complete"
)

// TaskStatus tracks the lifecycle of a task or a tool call.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// TaskType distinguishes data-gathering tasks from reasoning tasks.
type TaskType string

const (
	TaskUseTools TaskType = "use_tools"
	TaskReason   TaskType = "reason"
)

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityAction    EntityType = "action"
	EntitySkillName EntityType = "skill_name"
	EntityToolName  EntityType = "tool_name"
)

// Entity is a piece of information extracted from the query by Understand.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
}

// Understanding is the result of the Understand phase; produced once per
// run and read-only thereafter.
type Understanding struct {
	Intent   string   `json:"intent"`
	Entities []Entity `json:"entities"`
}

// ToolCall names a tool and the arguments the model selected for it.
type ToolCall struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// ToolCallStatus is a ToolCall plus its execution state. Mutated in place
// as the call runs.
type ToolCallStatus struct {
	ToolCall
	Status TaskStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Task is one unit of work within a plan. IDs carry an iteration prefix so
// they are unique across the whole run.
type Task struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Status      TaskStatus        `json:"status"`
	TaskType    TaskType          `json:"taskType"`
	DependsOn   []string          `json:"dependsOn,omitempty"`
	ToolCalls   []*ToolCallStatus `json:"toolCalls,omitempty"`
}

// Plan is the output of one planning iteration. Immutable once returned.
type Plan struct {
	Summary string  `json:"summary"`
	Tasks   []*Task `json:"tasks"`
}

// TaskResult is the recorded outcome of one task, keyed by task ID in the
// run's results map.
type TaskResult struct {
	TaskID string `json:"taskId"`
	Output string `json:"output,omitempty"`
}

// ReflectionResult drives the continue/stop decision after each iteration.
type ReflectionResult struct {
	IsComplete         bool     `json:"isComplete"`
	Reasoning          string   `json:"reasoning"`
	MissingInfo        []string `json:"missingInfo"`
	SuggestedNextSteps string   `json:"suggestedNextSteps"`
}

// UnderstandInput feeds the Understand phase.
type UnderstandInput struct {
	Query               string
	ConversationContext string
}

// PlanInput feeds one Plan iteration.
type PlanInput struct {
	Query                  string
	Understanding          Understanding
	PriorPlans             []*Plan
	PriorResults           map[string]TaskResult
	GuidanceFromReflection string
}

// ReasonInput feeds the reasoning path for a single reason task.
type ReasonInput struct {
	Query       string
	Task        *Task
	Plan        *Plan
	ContextData string
}

// ReflectInput feeds the Reflect phase.
type ReflectInput struct {
	Query          string
	Understanding  Understanding
	CompletedPlans []*Plan
	TaskResults    map[string]TaskResult
	Iteration      int
}

// AnswerInput feeds the final Answer phase.
type AnswerInput struct {
	Query          string
	CompletedPlans []*Plan
	TaskResults    map[string]TaskResult
}

// ParseTaskType validates a model-supplied task type string.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskUseTools:
		return TaskUseTools, nil
	case TaskReason:
		return TaskReason, nil
	}
	return "", fmt.Errorf("unknown task type: %q", s)
}

// ParseEntityType validates a model-supplied entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityAction, EntitySkillName, EntityToolName:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type: %q", s)
}
