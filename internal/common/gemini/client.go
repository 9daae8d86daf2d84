// Package gemini wraps the Google GenAI client for the two calls the pipeline
// makes: free-form generation for repository analysis and text embeddings for
// semantic matching.
package gemini

import (
	"context"
	"net/http"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultMaxAttempts    = 3
)

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxAttempts    int
	RetryDelay     time.Duration
}

type Client struct {
	models         modelsAPI
	model          string
	embeddingModel string
	maxAttempts    int
	retryDelay     time.Duration
}

// NewClient creates a client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return newWithModels(gc.Models, cfg), nil
}

func newWithModels(models modelsAPI, cfg Config) *Client {
	c := &Client{
		models:         models,
		model:          strings.TrimSpace(cfg.Model),
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
		maxAttempts:    cfg.MaxAttempts,
		retryDelay:     cfg.RetryDelay,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = defaultEmbeddingModel
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	return c
}

// GenerateContent sends the prompt and returns the concatenated text parts
// of the response.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var resp *genai.GenerateContentResponse
	err := c.retry(ctx, func() error {
		var err error
		resp, err = c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "generate content")
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return out, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding text must not be empty")
	}

	var resp *genai.EmbedContentResponse
	err := c.retry(ctx, func() error {
		var err error
		resp, err = c.models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "embed content")
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned no embedding")
	}

	values := resp.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) retry(ctx context.Context, op func() error) error {
	delay := c.retryDelay
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !isTemporary(err) || attempt == c.maxAttempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}

func isTemporary(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}
