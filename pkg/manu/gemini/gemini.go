// Package gemini implements the client for the Google Generative Language
// API (generateContent). It is the assistant backend behind the chat
// pipeline: one prompt in, one aggregated text reply out, with the model's
// code-execution tool enabled.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public Generative Language API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel is the model used when the config leaves it empty.
const DefaultModel = "gemini-2.5-flash"

// defaultTemperature matches the sampling the assistant persona was tuned
// against.
const defaultTemperature = 1.0

// Thinking budgets by model family. The 2.5 family accepts a much larger
// reasoning budget than earlier models.
const (
	thinkingBudget25      = 32768
	thinkingBudgetDefault = 8192
)

// Config holds the client parameters.
type Config struct {
	// APIKey authenticates against the Generative Language API.
	APIKey string

	// BaseURL overrides the API endpoint. Mainly for tests.
	BaseURL string
}

// Client talks to the generateContent endpoint. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Gemini client from config.
func New(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			// No global timeout here; each call carries its own context
			// deadline set by the caller.
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       120 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 180 * time.Second,
			},
		},
		logger: logger.With("component", "gemini"),
	}
}

// ThinkingBudget returns the reasoning-token budget for a model.
func ThinkingBudget(model string) int {
	if strings.Contains(model, "2.5") {
		return thinkingBudget25
	}
	return thinkingBudgetDefault
}

// ---------- Wire Types ----------

type generatePart struct {
	Text                string               `json:"text,omitempty"`
	ExecutableCode      *executableCode      `json:"executableCode,omitempty"`
	CodeExecutionResult *codeExecutionResult `json:"codeExecutionResult,omitempty"`
}

type executableCode struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
}

type codeExecutionResult struct {
	Outcome string `json:"outcome,omitempty"`
	Output  string `json:"output,omitempty"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generateTool struct {
	CodeExecution struct{} `json:"codeExecution"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	Temperature    float64         `json:"temperature"`
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	Contents          []generateContent `json:"contents"`
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	Tools             []generateTool    `json:"tools,omitempty"`
	GenerationConfig  generationConfig  `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      generateContent `json:"content"`
		FinishReason string          `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// ---------- Public Methods ----------

// Respond sends one prompt to the model and returns the aggregated text
// reply. Code-execution tool output is folded into the reply in part order:
// generated code and its execution output appear where the model emitted
// them.
func (c *Client) Respond(ctx context.Context, prompt, model, systemInstruction string) (string, error) {
	if model == "" {
		model = DefaultModel
	}

	reqBody := generateRequest{
		Contents: []generateContent{{
			Role:  "user",
			Parts: []generatePart{{Text: prompt}},
		}},
		Tools: []generateTool{{}},
		GenerationConfig: generationConfig{
			Temperature:    defaultTemperature,
			ThinkingConfig: &thinkingConfig{ThinkingBudget: ThinkingBudget(model)},
		},
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &generateContent{
			Parts: []generatePart{{Text: systemInstruction}},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("sending generate content request",
		"model", model,
		"prompt_len", len(prompt),
		"thinking_budget", ThinkingBudget(model),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	bodyStr := string(respBody)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error",
			"model", model,
			"status", resp.StatusCode,
			"body", truncate(bodyStr, 500),
		)
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(bodyStr, 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("parsing response: %w (body: %s)", err, truncate(bodyStr, 200))
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("API error %s: %s", genResp.Error.Status, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("empty response: no candidates (body: %s)", truncate(bodyStr, 200))
	}

	text := collectParts(genResp.Candidates[0].Content.Parts)
	if text == "" {
		return "", fmt.Errorf("empty response: candidate has no text")
	}

	c.logger.Info("generate content done",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", genResp.Candidates[0].FinishReason,
		"reply_len", len(text),
	)

	return text, nil
}

// collectParts flattens a candidate's parts into one reply string. Text
// parts are concatenated as-is; executable code and its output are rendered
// as fenced blocks so the chat reply stays readable.
func collectParts(parts []generatePart) string {
	var b strings.Builder
	for _, p := range parts {
		switch {
		case p.Text != "":
			b.WriteString(p.Text)
		case p.ExecutableCode != nil && p.ExecutableCode.Code != "":
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "```%s\n%s\n```\n", strings.ToLower(p.ExecutableCode.Language), p.ExecutableCode.Code)
		case p.CodeExecutionResult != nil && p.CodeExecutionResult.Output != "":
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "```\n%s\n```\n", p.CodeExecutionResult.Output)
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate shortens s to max bytes for log and error output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
