package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 15 * time.Second
	temperature    = 0.3
)

// modelClient is the subset of *genai.Models used here.
type modelClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for insights in JSON mode.
type Gemini struct {
	models  modelClient
	model   string
	timeout time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, cfg.Model, cfg.Timeout), nil
}

func newGemini(models modelClient, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{models: models, model: model, timeout: timeout}
}

// Generate sends the prompt for in and parses the reply. Every failure is
// wrapped with ErrInsightUnavailable.
func (g *Gemini) Generate(ctx context.Context, in Input) ([]string, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsightUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrInsightUnavailable, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrInsightUnavailable)
	}
	return ParseInsights(resp.Text())
}
