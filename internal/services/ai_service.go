package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"fiscaal-rapportage/internal/config"
)

// CompletionResult holds the outcome of one AI completion call
type CompletionResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	DurationMs       int64
}

// Completer is the AI dependency of the workflow services. Tests swap in a
// fake; production uses AIService.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompletionResult, error)
}

// AIService executes stage prompts against an OpenAI-compatible provider
type AIService struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
}

// NewAIService creates a new AI service from the provider configuration
func NewAIService(cfg config.OpenAIConfig) *AIService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &AIService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries:  cfg.MaxRetries,
	}
}

// Complete sends a system+user prompt pair and returns the model's text
func (s *AIService) Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompletionResult, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if s.maxTokens > 0 {
		request.MaxTokens = s.maxTokens
	}

	var lastErr error
	attempts := 1 + s.maxRetries

	for attempt := 0; attempt < attempts; attempt++ {
		response, err := s.client.CreateChatCompletion(ctx, request)
		if err == nil {
			if len(response.Choices) == 0 {
				return nil, fmt.Errorf("%w: response contains no choices", ErrInvalidOutput)
			}
			return &CompletionResult{
				Text:             response.Choices[0].Message.Content,
				Model:            response.Model,
				PromptTokens:     response.Usage.PromptTokens,
				CompletionTokens: response.Usage.CompletionTokens,
				DurationMs:       time.Since(start).Milliseconds(),
			}, nil
		}
		lastErr = err

		// Don't retry on context cancellation/timeout or client-side errors
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		log.Printf("WARNING: AI call attempt %d/%d failed: %v", attempt+1, attempts, err)
	}

	if ctx.Err() != nil {
		return nil, ErrProviderTimeout
	}
	if isConnectionError(lastErr) {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

// retryable reports whether an API error is worth another attempt. Rate
// limits and server errors are; invalid requests and bad keys are not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures may be transient
	return true
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

// extractJSONBlock finds the first balanced JSON value ({...} or [...]) in
// raw model output, after stripping markdown code fences. Models regularly
// wrap JSON in fences or prose despite instructions not to.
func extractJSONBlock(raw string) (string, error) {
	cleaned := stripCodeFences(raw)

	start := strings.IndexAny(cleaned, "[{")
	if start == -1 {
		return "", fmt.Errorf("%w: no JSON value found in response", ErrInvalidOutput)
	}

	open := cleaned[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: unbalanced JSON in response", ErrInvalidOutput)
}

// stripCodeFences removes markdown code fences (```json ... ```)
func stripCodeFences(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}
