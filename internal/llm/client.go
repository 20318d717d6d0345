// Package llm is the default LLMClient implementation: an HTTP JSON
// client over the Anthropic Messages tool-use protocol (spec §6), with
// an in-memory response cache. Grounded directly on the teacher's own
// HTTP classification client (internal/classifier/client.go) rather
// than importing a provider SDK, since the wire transport is out of
// scope per spec §1.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/ratelimit"
)

// MaxToolRounds bounds the tool-use back-and-forth per chat turn
// (spec §6).
const MaxToolRounds = 5

const cacheExpiry = 24 * time.Hour

// Block is one content block in an Anthropic-style Messages response:
// either a text block or a tool_use block.
type Block struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Message is one turn in the conversation sent to the LLM.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Tool declares a callable tool the assistant may invoke, with a JSON
// schema describing its input shape.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is one Messages API call (spec §6 messages_create).
type Request struct {
	Model      string    `json:"model"`
	System     string    `json:"system"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
	MaxTokens  int       `json:"max_tokens"`
}

// Response is the assistant's reply.
type Response struct {
	Content      []Block `json:"content"`
	StopReason   string  `json:"stop_reason"`
	Usage        Usage   `json:"usage"`
}

// Usage reports token accounting for llm_request_log.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Client is the LLMClient capability (spec §6).
type Client interface {
	MessagesCreate(ctx context.Context, req Request) (*Response, error)
}

type cacheEntry struct {
	response  *Response
	timestamp time.Time
}

// HTTPClient is the default Client implementation, an HTTP JSON client
// against an Anthropic-compatible Messages endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	cacheMu      sync.RWMutex
	cache        map[string]cacheEntry
	cacheEnabled bool
}

// New returns an HTTPClient pointed at baseURL, authenticating with
// apiKey. Long timeout: LLM inference calls routinely run tens of
// seconds.
func New(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		cache:        make(map[string]cacheEntry),
		cacheEnabled: true,
	}
}

// SetCacheEnabled toggles the in-memory response cache.
func (c *HTTPClient) SetCacheEnabled(enabled bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheEnabled = enabled
}

func cacheKey(req Request) string {
	data, _ := json.Marshal(req)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (c *HTTPClient) getCached(key string) (*Response, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	if !c.cacheEnabled {
		return nil, false
	}
	entry, ok := c.cache[key]
	if !ok || time.Since(entry.timestamp) > cacheExpiry {
		return nil, false
	}
	return entry.response, true
}

func (c *HTTPClient) setCache(key string, resp *Response) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if !c.cacheEnabled {
		return
	}
	c.cache[key] = cacheEntry{response: resp, timestamp: time.Now()}
	if len(c.cache) > 1000 {
		now := time.Now()
		for k, v := range c.cache {
			if now.Sub(v.timestamp) > cacheExpiry {
				delete(c.cache, k)
			}
		}
	}
}

// MessagesCreate issues one tool-use-capable chat completion call,
// serving from cache when the identical request was seen within
// cacheExpiry. Tool calls with side effects (classify_email) are pure
// functions of their input, so caching identical requests is safe.
func (c *HTTPClient) MessagesCreate(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(req)
	if cached, found := c.getCached(key); found {
		return cached, nil
	}

	rate, capacity := modelTierRate(req.Model)
	if err := ratelimit.Get(ratelimit.BucketClaudeAPI, rate, capacity).Consume(ctx, 1); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &httpStatusError{status: resp.StatusCode, body: string(respBody)}
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}

	c.setCache(key, &result)
	return &result, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request failed (status %d): %s", e.status, e.body)
}

// StatusCode exposes the HTTP status so callers can distinguish
// transient 5xx (retriable) from 4xx (non-retriable).
func (e *httpStatusError) StatusCode() int { return e.status }

// modelTierRate returns the claude_api bucket's rate and capacity for
// a given model (spec §4.3: "rate configured by model tier"). Haiku-
// tier models see a more generous bucket than Sonnet/Opus, matching
// their published higher throughput limits.
func modelTierRate(model string) (rate, capacity float64) {
	switch {
	case strings.Contains(model, "haiku"):
		return 5, 10
	case strings.Contains(model, "opus"):
		return 1, 2
	default:
		return 2, 5
	}
}

// FindToolUse returns the first tool_use block of the given name, or
// nil if the response contains none.
func FindToolUse(resp *Response, toolName string) *Block {
	for i := range resp.Content {
		if resp.Content[i].Type == "tool_use" && resp.Content[i].Name == toolName {
			return &resp.Content[i]
		}
	}
	return nil
}
