package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// MaxPromptLength caps inbound prompts before they reach the upstream API.
const MaxPromptLength = 5000

var (
	// ErrRateLimited signals an upstream 429; callers may retry with backoff.
	ErrRateLimited = errors.New("RATE_LIMITED: Upstream rate limit exceeded")
	// ErrNoText signals a response with no usable candidate text.
	ErrNoText = errors.New("NO_TEXT: Upstream returned no candidate text")
	// ErrNotConfigured signals a missing API key.
	ErrNotConfigured = errors.New("NOT_CONFIGURED: AI API key is not set")
)

// Params are the generation knobs exposed to callers.
type Params struct {
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Generator produces text for a prompt. Every operation a caller can need
// is declared here; there is no dynamic fallthrough for undefined methods.
type Generator interface {
	Generate(ctx context.Context, p Params) (string, error)
}

// Safety thresholds are fixed; they are not caller-tunable.
var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// GeminiGenerator talks to the Google GenAI API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate forwards a prompt and returns the first candidate's text.
func (g *GeminiGenerator) Generate(ctx context.Context, p Params) (string, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return "", errors.New("EMPTY_PROMPT: Prompt is required")
	}
	if len(p.Prompt) > MaxPromptLength {
		return "", fmt.Errorf("PROMPT_TOO_LONG: Prompt exceeds %d characters", MaxPromptLength)
	}

	cfg := &genai.GenerateContentConfig{
		SafetySettings: safetySettings,
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*p.Temperature))
	}

	contents := []*genai.Content{
		genai.NewContentFromText(p.Prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoText
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}

	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
