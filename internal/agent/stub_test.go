package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

var errStub = errors.New("stub failure")

// stubProvider scripts model responses per phase. Handlers left nil
// make the corresponding call fail, so a test only wires what it
// expects to run.
type stubProvider struct {
	mu          sync.Mutex
	understands int
	plans       int
	selects     int
	reflects    int
	generates   int
	streams     int

	onUnderstand func() (understandingWire, error)
	onPlan       func(prompt string) (planWire, error)
	onSelect     func(prompt string) (toolSelectionWire, error)
	onReflect    func(prompt string) (reflectionWire, error)
	onGenerate   func(prompt string) (string, error)
	onStream     func(prompt string) (*llm.Stream, error)
}

func (s *stubProvider) Generate(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	s.mu.Lock()
	s.generates++
	fn := s.onGenerate
	s.mu.Unlock()
	if fn == nil {
		return "", fmt.Errorf("unexpected Generate call")
	}
	return fn(prompt)
}

func (s *stubProvider) GenerateStructured(ctx context.Context, prompt, systemPrompt, model string, out llm.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch target := out.(type) {
	case *understandingWire:
		s.understands++
		if s.onUnderstand == nil {
			return fmt.Errorf("unexpected understand call")
		}
		wire, err := s.onUnderstand()
		if err != nil {
			return err
		}
		*target = wire
	case *planWire:
		s.plans++
		if s.onPlan == nil {
			return fmt.Errorf("unexpected plan call")
		}
		wire, err := s.onPlan(prompt)
		if err != nil {
			return err
		}
		*target = wire
	case *toolSelectionWire:
		s.selects++
		if s.onSelect == nil {
			return fmt.Errorf("unexpected tool selection call")
		}
		wire, err := s.onSelect(prompt)
		if err != nil {
			return err
		}
		*target = wire
	case *reflectionWire:
		s.reflects++
		if s.onReflect == nil {
			return fmt.Errorf("unexpected reflect call")
		}
		wire, err := s.onReflect(prompt)
		if err != nil {
			return err
		}
		*target = wire
	default:
		return fmt.Errorf("unexpected structured target %T", out)
	}
	return out.Validate()
}

func (s *stubProvider) Stream(ctx context.Context, prompt, systemPrompt, model string) (*llm.Stream, error) {
	s.mu.Lock()
	s.streams++
	fn := s.onStream
	s.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("unexpected Stream call")
	}
	return fn(prompt)
}

// stubTool is a scriptable tool for executor tests.
type stubTool struct {
	name     string
	describe string
	invoke   func(ctx context.Context, args map[string]interface{}) (tools.Result, error)

	mu      sync.Mutex
	invoked []map[string]interface{}
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return t.describe }
func (t *stubTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (t *stubTool) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	t.mu.Lock()
	t.invoked = append(t.invoked, args)
	t.mu.Unlock()
	if t.invoke == nil {
		return tools.Result{Output: "ok"}, nil
	}
	return t.invoke(ctx, args)
}

func (t *stubTool) invocations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.invoked)
}
