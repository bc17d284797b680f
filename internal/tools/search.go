package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kris4js/WildGooseAgent/config"
)

// SearchTool queries a Tavily-compatible web search API and returns result
// snippets plus the result URLs for provenance.
type SearchTool struct {
	cfg  config.SearchToolConfig
	http *HTTPClient
}

// NewSearchTool creates a web search tool from configuration.
func NewSearchTool(cfg config.SearchToolConfig) *SearchTool {
	return &SearchTool{
		cfg:  cfg,
		http: NewHTTPClient(cfg.Timeout, 2, 0),
	}
}

func (s *SearchTool) Name() string { return "web_search" }

func (s *SearchTool) Description() string {
	return "Search the web for current information. Returns titles, snippets and URLs of matching pages."
}

func (s *SearchTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Invoke(ctx context.Context, args map[string]interface{}) (Result, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("web_search: query is required")
	}
	if s.cfg.APIKey == "" {
		return Result{}, fmt.Errorf("web_search: API key not configured")
	}

	maxResults := s.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}

	reqBody := map[string]interface{}{
		"api_key":     s.cfg.APIKey,
		"query":       query,
		"max_results": maxResults,
	}
	var resp struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := s.http.DoJSON(ctx, "POST", endpoint, nil, reqBody, &resp); err != nil {
		return Result{}, fmt.Errorf("web_search: %w", err)
	}

	var b strings.Builder
	var urls []string
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n\n", resp.Answer)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n%s\nURL: %s\n\n", i+1, r.Title, strings.TrimSpace(r.Content), r.URL)
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	if b.Len() == 0 {
		return Result{Output: "No results found."}, nil
	}
	return Result{Output: strings.TrimSpace(b.String()), SourceURLs: urls}, nil
}
