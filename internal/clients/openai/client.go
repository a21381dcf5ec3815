package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brightpath/onboardhub-backend/internal/pkg/httpx"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/utils"
)

// Client is the OpenAI API surface the engine depends on.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Structured outputs (json_schema)
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)

	// Plain text (no schema)
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// AuditEntry describes one completed model invocation.
type AuditEntry struct {
	Purpose   string
	Model     string
	Success   bool
	Fallback  bool
	LatencyMS int64
	Err       string
}

// Auditor receives a record per model call. Implementations must not block.
type Auditor interface {
	Audit(ctx context.Context, entry AuditEntry)
}

type client struct {
	log           *logger.Logger
	baseURL       string
	apiKey        string
	model         string
	fallbackModel string
	embedModel    string
	httpClient    *http.Client
	maxRetries    int
	auditor       Auditor
}

func NewClient(log *logger.Logger, auditor Auditor) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := utils.GetEnv("OPENAI_API_KEY", "", nil)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log), "/")
	model := utils.GetEnv("OPENAI_MODEL", "gpt-5.2", log)
	fallbackModel := utils.GetEnv("OPENAI_FALLBACK_MODEL", "gpt-5.2-mini", log)
	embedModel := utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 120, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 3, log)

	return &client{
		log:           log.With("client", "OpenAIClient"),
		baseURL:       baseURL,
		apiKey:        apiKey,
		model:         model,
		fallbackModel: fallbackModel,
		embedModel:    embedModel,
		httpClient:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:    maxRetries,
		auditor:       auditor,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("openai request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) audit(ctx context.Context, entry AuditEntry) {
	if c.auditor == nil {
		return
	}
	c.auditor.Audit(ctx, entry)
}

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embeddingsRequest{Model: c.embedModel, Input: clean}

	started := time.Now()
	var resp embeddingsResponse
	err := c.do(ctx, "POST", "/v1/embeddings", req, &resp)
	c.audit(ctx, AuditEntry{
		Purpose:   "embed",
		Model:     c.embedModel,
		Success:   err == nil,
		LatencyMS: time.Since(started).Milliseconds(),
		Err:       errString(err),
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("openai embeddings missing index %d: requested=%d returned=%d", i, len(clean), len(resp.Data))
		}
	}
	return out, nil
}

// -------------------- Responses API --------------------

type responsesRequest struct {
	Model string `json:"model"`

	Input []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"input"`

	Text struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func newResponsesRequest(model, system, user string) responsesRequest {
	return responsesRequest{
		Model: model,
		Input: []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		}{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
}

// generateWithFallback runs the request against the primary model (with the
// usual backoff retries) and, if that still fails on a retryable upstream
// error, makes one final attempt with the fallback model.
func (c *client) generateWithFallback(ctx context.Context, purpose string, build func(model string) responsesRequest) (responsesResponse, error) {
	started := time.Now()
	var resp responsesResponse
	err := c.do(ctx, "POST", "/v1/responses", build(c.model), &resp)
	c.audit(ctx, AuditEntry{
		Purpose:   purpose,
		Model:     c.model,
		Success:   err == nil,
		LatencyMS: time.Since(started).Milliseconds(),
		Err:       errString(err),
	})
	if err == nil {
		return resp, nil
	}
	if c.fallbackModel == "" || c.fallbackModel == c.model || !httpx.IsRetryableError(err) {
		return resp, err
	}

	c.log.Warn("primary model exhausted, trying fallback model",
		"purpose", purpose,
		"primary", c.model,
		"fallback", c.fallbackModel,
		"error", err.Error(),
	)

	started = time.Now()
	var fresp responsesResponse
	ferr := c.do(ctx, "POST", "/v1/responses", build(c.fallbackModel), &fresp)
	c.audit(ctx, AuditEntry{
		Purpose:   purpose,
		Model:     c.fallbackModel,
		Success:   ferr == nil,
		Fallback:  true,
		LatencyMS: time.Since(started).Milliseconds(),
		Err:       errString(ferr),
	})
	if ferr != nil {
		return fresp, ferr
	}
	return fresp, nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}

	resp, err := c.generateWithFallback(ctx, schemaName, func(model string) responsesRequest {
		req := newResponsesRequest(model, system, user)
		req.Text.Format = map[string]any{
			"type":   "json_schema",
			"name":   schemaName,
			"schema": schema,
			"strict": true,
		}
		return req
	})
	if err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	jsonText := extractOutputText(resp)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, jsonText)
	}
	return obj, nil
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	resp, err := c.generateWithFallback(ctx, "generate_text", func(model string) responsesRequest {
		return newResponsesRequest(model, system, user)
	})
	if err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
