// Package summarize turns cleaned transcripts into blog articles via an
// LLM provider.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"tubescribe/internal/config"
)

// Provider is the interface for summarization backends.
type Provider interface {
	Name() string
	Model() string
	IsConfigured() bool
	Generate(ctx context.Context, system, user string) (string, error)
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiProvider calls the Google AI generateContent API.
type GeminiProvider struct {
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
	baseURL   string
}

// NewGeminiProvider creates a Gemini provider reading its key from the
// given environment variable.
func NewGeminiProvider(model, apiKeyEnv string, maxTokens int) *GeminiProvider {
	return &GeminiProvider{
		model:     model,
		apiKey:    os.Getenv(apiKeyEnv),
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 300 * time.Second},
		baseURL:   geminiBaseURL,
	}
}

func (g *GeminiProvider) Name() string  { return "gemini" }
func (g *GeminiProvider) Model() string { return g.model }

// IsConfigured checks if the API key is set.
func (g *GeminiProvider) IsConfigured() bool {
	return g.apiKey != ""
}

// Generate sends the system and user prompts to Gemini.
func (g *GeminiProvider) Generate(ctx context.Context, system, user string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("Gemini API key not configured")
	}

	body := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": user}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": g.maxTokens,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("empty Gemini response")
	}
	return text, nil
}

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider calls the OpenRouter chat completions API.
type OpenRouterProvider struct {
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
	baseURL   string
}

// NewOpenRouterProvider creates an OpenRouter provider reading its key
// from the given environment variable.
func NewOpenRouterProvider(model, apiKeyEnv string, maxTokens int) *OpenRouterProvider {
	return &OpenRouterProvider{
		model:     model,
		apiKey:    os.Getenv(apiKeyEnv),
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 300 * time.Second},
		baseURL:   openRouterURL,
	}
}

func (o *OpenRouterProvider) Name() string  { return "openrouter" }
func (o *OpenRouterProvider) Model() string { return o.model }

// IsConfigured checks if the API key is set.
func (o *OpenRouterProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Generate sends the system and user prompts to OpenRouter.
func (o *OpenRouterProvider) Generate(ctx context.Context, system, user string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OpenRouter API key not configured")
	}

	body := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":  o.maxTokens,
		"temperature": 0.3,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenRouter API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenRouter API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenRouter response")
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty OpenRouter response")
	}
	return text, nil
}

// CreateProvider creates a summarization provider based on configuration.
// Returns nil when provider is "none" or no configured backend exists;
// callers then fall back to transcript-only articles.
func CreateProvider(cfg config.Summarization) Provider {
	switch strings.ToLower(cfg.Provider) {
	case "none":
		log.Println("Summarization disabled, articles will carry the cleaned transcript")
		return nil
	case "openrouter":
		p := NewOpenRouterProvider(cfg.OpenRouterModel, cfg.OpenRouterAPIKeyEnv, cfg.MaxTokens)
		if p.IsConfigured() {
			log.Printf("Using OpenRouter with model: %s", cfg.OpenRouterModel)
			return p
		}
		log.Println("OpenRouter not configured, trying Gemini fallback...")
	}

	g := NewGeminiProvider(cfg.GeminiModel, cfg.GeminiAPIKeyEnv, cfg.MaxTokens)
	if g.IsConfigured() {
		log.Printf("Using Gemini with model: %s", cfg.GeminiModel)
		return g
	}

	o := NewOpenRouterProvider(cfg.OpenRouterModel, cfg.OpenRouterAPIKeyEnv, cfg.MaxTokens)
	if o.IsConfigured() {
		log.Printf("Using OpenRouter with model: %s", cfg.OpenRouterModel)
		return o
	}

	log.Println("No summarization provider available, articles will carry the cleaned transcript")
	return nil
}

// BuildPrompt assembles the system and user prompts from a template and
// the video material.
func BuildPrompt(tmpl config.PromptTemplate, title, cleaned, description string) (system, user string) {
	var sb strings.Builder
	sb.WriteString("=== Tone & Manner ===\n")
	sb.WriteString(strings.Join(tmpl.ToneInstructions, "\n"))
	sb.WriteString("\n\n=== Output Instructions ===\n")
	sb.WriteString(strings.Join(tmpl.OutputInstructions, "\n"))
	sb.WriteString("\n\n=== Video Title ===\n")
	sb.WriteString(title)
	if description != "" {
		sb.WriteString("\n\n=== Video Description ===\n")
		sb.WriteString(description)
	}
	sb.WriteString("\n\n=== Transcript ===\n")
	sb.WriteString(cleaned)
	return tmpl.SystemMessage, sb.String()
}
