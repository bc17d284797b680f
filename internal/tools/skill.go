package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kris4js/WildGooseAgent/internal/skills"
)

// SkillTool exposes the skill registry as a tool: invoking it loads the
// named skill's full instructions so the model can follow them when
// producing the task output.
type SkillTool struct {
	registry *skills.Registry
}

// NewSkillTool creates a skill tool backed by the given registry.
func NewSkillTool(registry *skills.Registry) *SkillTool {
	return &SkillTool{registry: registry}
}

func (s *SkillTool) Name() string { return "skill_tool" }

func (s *SkillTool) Description() string {
	section, err := s.registry.MetadataSection()
	if err != nil {
		section = "Skill listing unavailable."
	}
	return "Load a skill's full instructions by name. Follow the returned instructions to complete the task.\n" + section
}

func (s *SkillTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"skill": map[string]interface{}{
				"type":        "string",
				"description": "Name of the skill to load",
			},
			"args": map[string]interface{}{
				"type":        "string",
				"description": "Optional free-form arguments to apply the skill with",
			},
		},
		"required": []string{"skill"},
	}
}

func (s *SkillTool) Invoke(ctx context.Context, args map[string]interface{}) (Result, error) {
	name, _ := args["skill"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, fmt.Errorf("skill_tool: skill name is required")
	}

	skill, err := s.registry.Get(name)
	if err != nil {
		return Result{}, fmt.Errorf("skill_tool: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Skill: %s\n", skill.Name)
	if skill.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", skill.Description)
	}
	if extra, _ := args["args"].(string); strings.TrimSpace(extra) != "" {
		fmt.Fprintf(&b, "Arguments: %s\n", strings.TrimSpace(extra))
	}
	b.WriteString("\nInstructions:\n")
	b.WriteString(skill.Instructions)

	return Result{Output: b.String()}, nil
}
