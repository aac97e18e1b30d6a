package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/standardbeagle/pricematch/internal/debug"
)

// OpenAIConfig configures OpenAIService
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string // empty = api.openai.com
	Model             string
	MaxTokens         int
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
	BaseDelay         time.Duration // first retry waits BaseDelay plus jitter
}

// DefaultOpenAIConfig returns the defaults used by the CLI
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:             "gpt-4o-mini",
		MaxTokens:         500,
		RequestsPerSecond: 3,
		Burst:             5,
		MaxAttempts:       3,
		BaseDelay:         time.Second,
	}
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIService asks an OpenAI-compatible chat endpoint to rerank.
type OpenAIService struct {
	client  chatCompleter
	cfg     OpenAIConfig
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewOpenAIService creates the service. An empty API key is an error; use
// NullService instead.
func NewOpenAIService(cfg OpenAIConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, ErrServiceUnavailable
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAIService(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newOpenAIService(client chatCompleter, cfg OpenAIConfig) *OpenAIService {
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	return &OpenAIService{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		sleep:   sleepCtx,
	}
}

// Match sends the request, retrying transient failures with backoff and
// jitter until MaxAttempts or ctx ends.
func (s *OpenAIService) Match(ctx context.Context, req *Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		// zero is dropped by omitempty
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   s.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err == nil && len(resp.Choices) > 0 {
			return resp.Choices[0].Message.Content, nil
		}
		if err == nil {
			err = errors.New("no choices in completion")
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			break
		}

		debug.LogRerank("attempt %d/%d failed: %v", attempt, s.cfg.MaxAttempts, err)
		if attempt < s.cfg.MaxAttempts {
			backoff := time.Duration(attempt)*s.cfg.BaseDelay + time.Duration(rand.Int63n(int64(s.cfg.BaseDelay)))
			if err := s.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("openai chat completion failed: %w", lastErr)
}

// retryable treats rate limiting, server errors and network errors as
// transient. Other HTTP errors (bad key, bad request) are not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
