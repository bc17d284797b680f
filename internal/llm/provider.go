package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kris4js/WildGooseAgent/config"
)

// Schema is implemented by structured-output targets. GenerateStructured
// unmarshals the model response into the target and then validates it;
// a validation failure surfaces as a ModelCallError.
type Schema interface {
	Validate() error
}

// Provider is the contract the orchestration core depends on. Three calls:
// plain completion, schema-validated structured output, and token streaming.
type Provider interface {
	// Generate runs a single non-streaming completion.
	Generate(ctx context.Context, prompt, systemPrompt, model string) (string, error)

	// GenerateStructured runs a completion and strictly parses the response
	// JSON into out, rejecting malformed or schema-invalid payloads.
	GenerateStructured(ctx context.Context, prompt, systemPrompt, model string, out Schema) error

	// Stream runs a streaming completion. Chunks arrive on the returned
	// stream's channel; the channel is closed when the model finishes or the
	// context is cancelled.
	Stream(ctx context.Context, prompt, systemPrompt, model string) (*Stream, error)
}

// ModelCallError wraps any failure of the model-calling collaborator,
// including unparseable or schema-invalid structured output.
type ModelCallError struct {
	Model string
	Op    string
	Err   error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed (%s, %s): %v", e.Op, e.Model, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// IsModelCallError reports whether err originates from the model collaborator.
func IsModelCallError(err error) bool {
	var mce *ModelCallError
	return errors.As(err, &mce)
}

// Stream carries streamed completion chunks. Err is valid once Chunks is
// closed.
type Stream struct {
	ch  chan string
	err error
}

func newStream() *Stream {
	return &Stream{ch: make(chan string)}
}

// NewStaticStream returns a stream that yields the given chunks and
// closes. Intended for stub providers.
func NewStaticStream(chunks ...string) *Stream {
	s := &Stream{ch: make(chan string, len(chunks))}
	for _, c := range chunks {
		s.ch <- c
	}
	close(s.ch)
	return s
}

// Chunks returns the channel of response fragments.
func (s *Stream) Chunks() <-chan string { return s.ch }

// Err reports the failure that terminated the stream, if any. Only valid
// after Chunks has been closed.
func (s *Stream) Err() error { return s.err }

// NewProvider creates a provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai", "":
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}
	return nil, fmt.Errorf("no valid LLM providers found")
}

// ExtractJSON returns the first balanced JSON object embedded in a model
// response, tolerating prose or code fences around it.
func ExtractJSON(response string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range response {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1], true
			}
		}
	}
	return "", false
}
