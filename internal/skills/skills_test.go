package skills

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestParseSkillFile(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "hello-skill", `---
name: hello-skill
description: Greets the user warmly.
---

# Hello Skill

Say hello to the user by name.
`)

	skill, err := ParseSkillFile(filepath.Join(dir, "hello-skill", "SKILL.md"))
	if err != nil {
		t.Fatalf("ParseSkillFile: %v", err)
	}
	if skill.Name != "hello-skill" {
		t.Errorf("name = %q, want hello-skill", skill.Name)
	}
	if skill.Description != "Greets the user warmly." {
		t.Errorf("description = %q", skill.Description)
	}
	if !strings.Contains(skill.Instructions, "Say hello to the user by name.") {
		t.Errorf("instructions missing body: %q", skill.Instructions)
	}
	if strings.Contains(skill.Instructions, "---") {
		t.Errorf("instructions contain frontmatter delimiter: %q", skill.Instructions)
	}
}

func TestParseSkillFileNameFallback(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "golden-seed", `---
description: Produces the golden seed value.
---
Emit the number 42.
`)

	skill, err := ParseSkillFile(filepath.Join(dir, "golden-seed", "SKILL.md"))
	if err != nil {
		t.Fatalf("ParseSkillFile: %v", err)
	}
	if skill.Name != "golden-seed" {
		t.Errorf("name = %q, want directory fallback golden-seed", skill.Name)
	}
}

func TestParseSkillFileNoFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "plain", "Just instructions, no header.\n")

	skill, err := ParseSkillFile(filepath.Join(dir, "plain", "SKILL.md"))
	if err != nil {
		t.Fatalf("ParseSkillFile: %v", err)
	}
	if skill.Name != "plain" {
		t.Errorf("name = %q, want plain", skill.Name)
	}
	if skill.Instructions != "Just instructions, no header." {
		t.Errorf("instructions = %q", skill.Instructions)
	}
}

func TestParseSkillFileUnterminatedFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "broken", "---\nname: broken\nno terminator\n")

	if _, err := ParseSkillFile(filepath.Join(dir, "broken", "SKILL.md")); err == nil {
		t.Fatal("expected error for unterminated frontmatter")
	}
}

func TestRegistryDiscoverAndGet(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "hello-skill", "---\nname: hello-skill\ndescription: Greets.\n---\nSay hi.\n")
	writeSkill(t, dir, "golden-seed", "---\nname: golden-seed\ndescription: Seed.\n---\nEmit 42.\n")

	reg := NewRegistry(dir)

	all, err := reg.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d skills, want 2", len(all))
	}
	if all[0].Name != "golden-seed" || all[1].Name != "hello-skill" {
		t.Errorf("skills not sorted by name: %s, %s", all[0].Name, all[1].Name)
	}
	if all[0].Source != SourceProject {
		t.Errorf("source = %q, want project", all[0].Source)
	}

	s, err := reg.Get("hello-skill")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Instructions != "Say hi." {
		t.Errorf("instructions = %q", s.Instructions)
	}

	if _, err := reg.Get("nope"); !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("Get(nope) = %v, want ErrSkillNotFound", err)
	}
}

func TestRegistryCollisionFirstDirWins(t *testing.T) {
	project := t.TempDir()
	user := t.TempDir()
	writeSkill(t, project, "dup", "---\nname: dup\ndescription: project copy\n---\nproject\n")
	writeSkill(t, user, "dup", "---\nname: dup\ndescription: user copy\n---\nuser\n")

	reg := NewRegistry(project, user)
	s, err := reg.Get("dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Instructions != "project" {
		t.Errorf("instructions = %q, want project copy to win", s.Instructions)
	}
}

func TestRegistryMissingDir(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	all, err := reg.Discover()
	if err != nil {
		t.Fatalf("Discover on missing dir: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("got %d skills from missing dir, want 0", len(all))
	}
}

func TestMetadataSection(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "hello-skill", "---\nname: hello-skill\ndescription: Greets.\n---\nSay hi.\n")

	reg := NewRegistry(dir)
	section, err := reg.MetadataSection()
	if err != nil {
		t.Fatalf("MetadataSection: %v", err)
	}
	if !strings.Contains(section, "- hello-skill: Greets.") {
		t.Errorf("section = %q", section)
	}

	empty := NewRegistry(t.TempDir())
	section, err = empty.MetadataSection()
	if err != nil {
		t.Fatalf("MetadataSection empty: %v", err)
	}
	if section != "No skills available." {
		t.Errorf("empty section = %q", section)
	}
}
