// Package skills discovers and loads SKILL.md instruction files.
//
// A skill is a directory containing a SKILL.md file with YAML frontmatter
// (name, description) followed by markdown instructions. Skills let the
// planner hand specialized procedures to the model at execution time
// without baking them into the system prompt.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source identifies where a skill was discovered.
type Source string

const (
	SourceProject Source = "project"
	SourceUser    Source = "user"
)

// Skill is a loaded skill with full instructions.
type Skill struct {
	Name         string
	Description  string
	Source       Source
	Path         string
	Instructions string
}

// frontmatter is the YAML header of a SKILL.md file.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseSkillFile reads a SKILL.md file and returns the skill it defines.
// The name falls back to the containing directory name when the
// frontmatter omits it.
func ParseSkillFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}

	meta, body, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = filepath.Base(filepath.Dir(path))
	}

	return &Skill{
		Name:         name,
		Description:  strings.TrimSpace(meta.Description),
		Path:         path,
		Instructions: strings.TrimSpace(body),
	}, nil
}

// splitFrontmatter separates the YAML header from the markdown body.
// Files without a frontmatter block are treated as all-body.
func splitFrontmatter(content string) (frontmatter, string, error) {
	var meta frontmatter

	trimmed := strings.TrimLeft(content, "\n\r\t ")
	if !strings.HasPrefix(trimmed, "---") {
		return meta, content, nil
	}

	rest := trimmed[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, "", fmt.Errorf("unterminated frontmatter block")
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return meta, "", fmt.Errorf("frontmatter: %w", err)
	}
	return meta, body, nil
}

// Registry discovers skills under one or more directories and caches them.
type Registry struct {
	mu     sync.RWMutex
	dirs   []string
	cache  map[string]*Skill
	loaded bool
}

// NewRegistry creates a registry scanning the given directories in order.
// Earlier directories win on name collisions. The first directory is
// treated as the project source, the rest as user sources.
func NewRegistry(dirs ...string) *Registry {
	return &Registry{dirs: dirs}
}

// Discover returns all available skills sorted by name. Results are
// cached after the first scan; call Reset to force a rescan.
func (r *Registry) Discover() ([]*Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.scanLocked(); err != nil {
		return nil, err
	}

	out := make([]*Skill, 0, len(r.cache))
	for _, s := range r.cache {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the named skill with full instructions, or ErrSkillNotFound.
func (r *Registry) Get(name string) (*Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.scanLocked(); err != nil {
		return nil, err
	}
	s, ok := r.cache[name]
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", name, ErrSkillNotFound)
	}
	return s, nil
}

// Reset clears the cache so the next Discover or Get rescans disk.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.cache = nil
	r.loaded = false
	r.mu.Unlock()
}

// MetadataSection renders the available-skills block inserted into the
// tool selection prompt: one "- name: description" line per skill.
func (r *Registry) MetadataSection() (string, error) {
	all, err := r.Discover()
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "No skills available.", nil
	}

	var b strings.Builder
	b.WriteString("Available skills:\n")
	for _, s := range all {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) scanLocked() error {
	if r.loaded {
		return nil
	}
	r.cache = make(map[string]*Skill)

	for i, dir := range r.dirs {
		source := SourceUser
		if i == 0 {
			source = SourceProject
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("scan skills dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name(), "SKILL.md")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			skill, err := ParseSkillFile(path)
			if err != nil {
				return err
			}
			skill.Source = source
			if _, exists := r.cache[skill.Name]; !exists {
				r.cache[skill.Name] = skill
			}
		}
	}
	r.loaded = true
	return nil
}
