package language

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"instacap/internal/domain"
)

const (
	openAIDefaultTimeout = 30 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"
)

// Options configures the OpenAI caption generator.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// OpenAIGenerator turns a vision analysis plus post options into caption,
// hashtags and suggestions via the chat completions API.
type OpenAIGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIGenerator(opts Options) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIGenerator{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

// GeneratePost asks the model for post content. A reply that is not valid
// JSON is salvaged into a degraded result rather than failing the call.
func (g *OpenAIGenerator) GeneratePost(ctx context.Context, req CaptionRequest) (*domain.PostContent, error) {
	payload := openAIChatRequest{
		Model:       g.model,
		Temperature: 0.7,
		ResponseFormat: &openAIFormat{
			Type: "json_object",
		},
		Messages: []openAIMessage{
			{Role: "system", Content: "You are an Instagram content expert that only responds with valid JSON."},
			{Role: "user", Content: buildCaptionPrompt(req)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: openai status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode openai response: %v", domain.ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", domain.ErrMalformedResponse)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrMalformedResponse)
	}

	parsed, err := parsePostPayload(text)
	if err != nil {
		g.logger.Warn().Err(err).Msg("model reply not parseable, salvaging")
		return Salvage(text, req.Options), nil
	}
	return &domain.PostContent{
		Caption:     strings.TrimSpace(parsed.Caption),
		Hashtags:    normalizeHashtags(parsed.Hashtags),
		Suggestions: normalizeSuggestions(parsed.Suggestions),
	}, nil
}

// normalizeHashtags strips the leading '#', dedupes case-insensitively and
// preserves order (the model returns them popularity-tiered).
func normalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, tag)
	}
	if len(result) == 0 {
		result = genericHashtags("")
	}
	return result
}

func normalizeSuggestions(suggestions []string) []string {
	var result []string
	for _, s := range suggestions {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
