package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Kris4js/WildGooseAgent/config"
)

// OpenAIProvider implements Provider against the OpenAI chat completions
// API (or any compatible endpoint via base_url).
type OpenAIProvider struct {
	config config.LLMProvider
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.LLMProvider) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model          string          `json:"model"`
	Messages       []chatMsg       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

func (p *OpenAIProvider) apiKey() string {
	if p.config.APIKey != "" {
		return p.config.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (p *OpenAIProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return strings.TrimSuffix(p.config.BaseURL, "/")
	}
	return "https://api.openai.com/v1"
}

// resolveModel maps a routing model key onto its API name and settings.
func (p *OpenAIProvider) resolveModel(model string) (string, config.LLMModel) {
	if m, ok := p.config.Models[model]; ok {
		if m.APIName != "" {
			return m.APIName, m
		}
		if m.Name != "" {
			return m.Name, m
		}
	}
	return model, config.LLMModel{}
}

func (p *OpenAIProvider) buildRequest(ctx context.Context, prompt, systemPrompt, model string, stream bool, structured bool) (*http.Request, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	apiModel, m := p.resolveModel(model)

	var messages []chatMsg
	if systemPrompt != "" {
		messages = append(messages, chatMsg{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMsg{Role: "user", Content: prompt})

	reqBody := chatReq{
		Model:       apiModel,
		Messages:    messages,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		Stream:      stream,
	}
	if structured {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL()+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// Generate runs a single non-streaming completion.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	text, err := p.complete(ctx, prompt, systemPrompt, model, false)
	if err != nil {
		return "", &ModelCallError{Model: model, Op: "generate", Err: err}
	}
	return text, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, prompt, systemPrompt, model string, structured bool) (string, error) {
	req, err := p.buildRequest(ctx, prompt, systemPrompt, model, false, structured)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStructured runs a completion and strictly parses the JSON response
// into out. Any parse or validation failure is a ModelCallError.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, prompt, systemPrompt, model string, out Schema) error {
	text, err := p.complete(ctx, prompt, systemPrompt, model, true)
	if err != nil {
		return &ModelCallError{Model: model, Op: "generate_structured", Err: err}
	}
	return ParseStructured(text, out, model)
}

// ParseStructured extracts, parses and validates a JSON payload from a raw
// model response. Shared with test doubles so schema handling stays uniform.
func ParseStructured(text string, out Schema, model string) error {
	payload, ok := ExtractJSON(text)
	if !ok {
		return &ModelCallError{Model: model, Op: "parse", Err: fmt.Errorf("no JSON object in response")}
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(out); err != nil {
		return &ModelCallError{Model: model, Op: "parse", Err: fmt.Errorf("decode structured output: %w", err)}
	}
	if err := out.Validate(); err != nil {
		return &ModelCallError{Model: model, Op: "validate", Err: err}
	}
	return nil
}

// Stream runs a streaming completion. The HTTP client timeout does not apply;
// cancellation is via ctx.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt, systemPrompt, model string) (*Stream, error) {
	req, err := p.buildRequest(ctx, prompt, systemPrompt, model, true, false)
	if err != nil {
		return nil, &ModelCallError{Model: model, Op: "stream", Err: err}
	}

	client := &http.Client{Transport: p.client.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ModelCallError{Model: model, Op: "stream", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ModelCallError{Model: model, Op: "stream", Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	s := newStream()
	go func() {
		defer close(s.ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case s.ch <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.err = &ModelCallError{Model: model, Op: "stream", Err: err}
		}
	}()
	return s, nil
}
