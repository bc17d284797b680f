package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/Kris4js/WildGooseAgent/config"
)

const browserMaxChars = 20000

// BrowserTool loads a page in headless Chrome and extracts the readable
// article text. One fetch per invocation; no navigation scripting.
type BrowserTool struct {
	cfg config.BrowserToolConfig
}

// NewBrowserTool creates a browser fetch tool from configuration.
func NewBrowserTool(cfg config.BrowserToolConfig) *BrowserTool {
	return &BrowserTool{cfg: cfg}
}

func (b *BrowserTool) Name() string { return "browser_fetch" }

func (b *BrowserTool) Description() string {
	return "Load a web page in a headless browser and return its readable text content. Use for pages that need JavaScript rendering."
}

func (b *BrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Absolute URL of the page to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (b *BrowserTool) Invoke(ctx context.Context, args map[string]interface{}) (Result, error) {
	raw, _ := args["url"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, fmt.Errorf("browser_fetch: url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{}, fmt.Errorf("browser_fetch: invalid url: %q", raw)
	}

	timeout := b.cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := b.fetchHTML(ctx, raw)
	if err != nil {
		return Result{}, fmt.Errorf("browser_fetch: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return Result{}, fmt.Errorf("browser_fetch: extract: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > browserMaxChars {
		text = text[:browserMaxChars]
	}

	var out strings.Builder
	if title := strings.TrimSpace(article.Title); title != "" {
		fmt.Fprintf(&out, "Title: %s\n\n", title)
	}
	out.WriteString(text)

	return Result{Output: out.String(), SourceURLs: []string{raw}}, nil
}

func (b *BrowserTool) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.UserAgent("WildGooseAgent/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
