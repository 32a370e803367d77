// Package gemini generates text with Gemini publisher models on Vertex AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finwise/internal/advice"

	aiplatform "google.golang.org/api/aiplatform/v1"
	goption "google.golang.org/api/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

var (
	ErrMissingAPIKey = errors.New("missing Gemini API key")
	ErrBlocked       = errors.New("prompt blocked")
	ErrNoCandidates  = errors.New("no candidates in response")
)

// Config configures the client.
type Config struct {
	APIKey string
	Model  string
	// ThinkingBudget caps the tokens a thinking model spends before it
	// answers. 0 turns thinking off; a negative value leaves the model default.
	ThinkingBudget int
}

// Client implements advice.Generator.
type Client struct {
	svc            *aiplatform.Service
	model          string
	thinkingBudget int
}

var _ advice.Generator = (*Client)(nil)

// New creates a client authenticated with cfg.APIKey. Extra options are
// passed to the API service, e.g. a custom endpoint in tests.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts = append([]goption.ClientOption{goption.WithAPIKey(apiKey)}, opts...)
	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create aiplatform service: %w", err)
	}

	slog.InfoContext(ctx, "Gemini client created", "model", model, "thinking_budget", cfg.ThinkingBudget)
	return &Client{svc: svc, model: model, thinkingBudget: cfg.ThinkingBudget}, nil
}

func (c *Client) Model() string { return c.model }

// Generate sends prompt as a single user turn and returns the concatenated
// answer text of the first candidate. Thought parts are skipped.
func (c *Client) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	req := &aiplatform.GoogleCloudAiplatformV1GenerateContentRequest{
		Contents: []*aiplatform.GoogleCloudAiplatformV1Content{{
			Role:  "user",
			Parts: []*aiplatform.GoogleCloudAiplatformV1Part{{Text: prompt}},
		}},
		GenerationConfig: c.generationConfig(maxOutputTokens),
	}

	resp, err := c.svc.Publishers.Models.GenerateContent(modelName(c.model), req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp)
}

func (c *Client) generationConfig(maxOutputTokens int) *aiplatform.GoogleCloudAiplatformV1GenerationConfig {
	gc := &aiplatform.GoogleCloudAiplatformV1GenerationConfig{}
	if maxOutputTokens > 0 {
		gc.MaxOutputTokens = int64(maxOutputTokens)
	}
	if c.thinkingBudget >= 0 {
		// A zero budget is omitted by the JSON encoder unless forced.
		gc.ThinkingConfig = &aiplatform.GoogleCloudAiplatformV1GenerationConfigThinkingConfig{
			ThinkingBudget:  int64(c.thinkingBudget),
			ForceSendFields: []string{"ThinkingBudget"},
		}
	}
	return gc
}

// modelName expands a bare model id to its publisher resource name.
func modelName(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return "publishers/google/models/" + model
}

func responseText(resp *aiplatform.GoogleCloudAiplatformV1GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrNoCandidates
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoCandidates
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}
