package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiLLM implements LLMClient with the Google GenAI SDK.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

func NewGeminiLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; set GOOGLE_API_KEY or llm.api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiLLM{client: client, model: model}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var config *genai.GenerateContentConfig
	if prompt.System != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
