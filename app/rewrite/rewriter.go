package rewrite

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

// Article is the unit of text passed through the rewrite step.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

type Rewriter interface {
	Rewrite(ctx context.Context, article Article) (Article, error)
}

// Passthrough returns articles unchanged. Used when no AI provider is configured.
type Passthrough struct{}

func (Passthrough) Rewrite(_ context.Context, article Article) (Article, error) {
	return article, nil
}

const systemPrompt = `شما یک دبیر خبری فارسی‌زبان هستید. خبر ورودی را با حفظ کامل واقعیت‌ها، نام‌ها، اعداد و تاریخ‌ها به زبان فارسی روان و رسمی بازنویسی کنید.
خروجی را فقط به صورت یک شیء JSON با کلیدهای "title"، "summary" و "content" برگردانید.
"summary" حداکثر دو جمله باشد. "content" می‌تواند شامل تگ‌های ساده HTML مانند <p> و <strong> باشد.`

// OpenAIRewriter calls an OpenAI-compatible chat completions endpoint.
type OpenAIRewriter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIRewriter(baseURL, apiKey, model string) *OpenAIRewriter {
	return &OpenAIRewriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// New returns an OpenAIRewriter, or Passthrough when apiKey is empty.
func New(baseURL, apiKey, model string) Rewriter {
	if apiKey == "" {
		return Passthrough{}
	}
	return NewOpenAIRewriter(baseURL, apiKey, model)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *OpenAIRewriter) Rewrite(ctx context.Context, article Article) (Article, error) {
	input, err := json.Marshal(article)
	if err != nil {
		return Article{}, fmt.Errorf("failed to encode article: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(input)},
		},
		Temperature:    0.4,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Article{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Article{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("failed to call AI provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Article{}, fmt.Errorf("failed to read AI response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Article{}, fmt.Errorf("failed to decode AI response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Article{}, fmt.Errorf("AI provider returned %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Choices) == 0 {
		return Article{}, fmt.Errorf("AI response has no choices")
	}

	var out Article
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &out); err != nil {
		return Article{}, fmt.Errorf("failed to decode rewritten article: %w", err)
	}

	out.Title = strings.TrimSpace(out.Title)
	out.Summary = strings.TrimSpace(out.Summary)
	out.Content = strings.TrimSpace(out.Content)
	if out.Title == "" || out.Content == "" {
		return Article{}, fmt.Errorf("rewritten article is missing title or content")
	}

	slog.Debug("Article rewritten", "model", r.model, "duration", time.Since(start), "content_length", len(out.Content))

	return out, nil
}
