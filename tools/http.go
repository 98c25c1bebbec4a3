// HTTP Client Tool.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Request/response handling abstracted

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richinex/loom/chat"
	"github.com/richinex/loom/llm"
)

// HTTPTool makes HTTP requests on behalf of the model.
type HTTPTool struct {
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
}

// NewHTTPTool creates a new HTTP tool with the given timeout.
func NewHTTPTool(timeoutSecs uint64) *HTTPTool {
	return &HTTPTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedDomains sets the allowed domains for requests.
func (t *HTTPTool) WithAllowedDomains(domains []string) *HTTPTool {
	t.allowedDomains = domains
	return t
}

// Definition returns the tool schema.
func (t *HTTPTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "http_request",
		Description: "Make HTTP GET or POST requests to fetch data from URLs",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":    map[string]any{"type": "string", "description": "The URL to request"},
				"method": map[string]any{"type": "string", "description": "HTTP method (GET or POST)"},
				"body":   map[string]any{"type": "string", "description": "Request body for POST requests"},
			},
			"required": []string{"url"},
		},
	}
}

// Invoke makes the HTTP request. Argument decode failures fall back to
// defaults per parameter; a missing URL fails the invocation.
func (t *HTTPTool) Invoke(ctx context.Context, call llm.ToolCall) llm.FunctionResult {
	params := chat.DecodeArguments(call)

	rawURL, err := params.String("url", "")
	if err != nil || rawURL == "" {
		return llm.FailureResult("URL cannot be empty")
	}
	method, _ := params.String("method", "GET")
	body, _ := params.String("body", "")

	if !t.isDomainAllowed(rawURL) {
		return llm.FailureResult(fmt.Sprintf("access to domain in '%s' is not allowed", rawURL))
	}

	method = strings.ToUpper(method)
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "POST" {
		return llm.FailureResult("only GET and POST methods are supported")
	}

	var req *http.Request
	var reqErr error
	if method == "POST" {
		req, reqErr = http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
	} else {
		req, reqErr = http.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if reqErr != nil {
		return llm.FailureResult(fmt.Sprintf("failed to create request: %v", reqErr))
	}

	resp, err2 := t.client.Do(req)
	if err2 != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return llm.FailureResult(fmt.Sprintf("request timed out after %d seconds", t.timeoutSecs))
		}
		return llm.FailureResult(fmt.Sprintf("request failed: %v", err2))
	}
	defer resp.Body.Close()

	respBody, err3 := io.ReadAll(resp.Body)
	if err3 != nil {
		return llm.FailureResult(fmt.Sprintf("failed to read response body: %v", err3))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return llm.SuccessResult(fmt.Sprintf("Status: %s\n\n%s", resp.Status, string(respBody)))
	}
	return llm.FailureResult(fmt.Sprintf("HTTP error: %s\n\n%s", resp.Status, string(respBody)))
}

// isDomainAllowed checks if the URL's domain is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (t *HTTPTool) isDomainAllowed(urlStr string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range t.allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Verify HTTPTool implements Tool
var _ Tool = (*HTTPTool)(nil)
