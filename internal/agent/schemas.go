package agent

import (
	"fmt"
	"strings"
)

// Wire shapes for structured model output. Each implements llm.Schema so
// the provider can reject malformed responses before they reach a phase.

type entityWire struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type understandingWire struct {
	Intent   string       `json:"intent"`
	Entities []entityWire `json:"entities"`
}

func (u *understandingWire) Validate() error {
	if strings.TrimSpace(u.Intent) == "" {
		return fmt.Errorf("understanding: intent is empty")
	}
	for i, e := range u.Entities {
		if _, err := ParseEntityType(e.Type); err != nil {
			return fmt.Errorf("understanding: entity %d: %w", i, err)
		}
		if strings.TrimSpace(e.Value) == "" {
			return fmt.Errorf("understanding: entity %d: value is empty", i)
		}
	}
	return nil
}

func (u *understandingWire) toUnderstanding() Understanding {
	out := Understanding{Intent: u.Intent}
	for _, e := range u.Entities {
		out.Entities = append(out.Entities, Entity{Type: EntityType(e.Type), Value: e.Value})
	}
	return out
}

type taskWire struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	TaskType    string   `json:"taskType"`
	DependsOn   []string `json:"dependsOn"`
}

type planWire struct {
	Summary string     `json:"summary"`
	Tasks   []taskWire `json:"tasks"`
}

func (p *planWire) Validate() error {
	// An empty task list is a valid "direct answer" plan.
	seen := make(map[string]bool, len(p.Tasks))
	for i, t := range p.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("plan: task %d: id is empty", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("plan: duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
		if strings.TrimSpace(t.Description) == "" {
			return fmt.Errorf("plan: task %q: description is empty", t.ID)
		}
		if _, err := ParseTaskType(t.TaskType); err != nil {
			return fmt.Errorf("plan: task %q: %w", t.ID, err)
		}
	}
	return nil
}

type toolCallWire struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

type toolSelectionWire struct {
	ToolCalls []toolCallWire `json:"toolCalls"`
}

func (s *toolSelectionWire) Validate() error {
	for i, c := range s.ToolCalls {
		if strings.TrimSpace(c.Tool) == "" {
			return fmt.Errorf("tool selection: call %d: tool name is empty", i)
		}
	}
	return nil
}

type reflectionWire struct {
	IsComplete         bool     `json:"isComplete"`
	Reasoning          string   `json:"reasoning"`
	MissingInfo        []string `json:"missingInfo"`
	SuggestedNextSteps string   `json:"suggestedNextSteps"`
}

func (r *reflectionWire) Validate() error {
	if strings.TrimSpace(r.Reasoning) == "" {
		return fmt.Errorf("reflection: reasoning is empty")
	}
	return nil
}
