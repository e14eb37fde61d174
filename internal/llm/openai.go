package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel — модель по умолчанию.
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature — температура по умолчанию.
	DefaultTemperature = 0.3

	// DefaultMaxRetries — сколько раз повторять запрос при 429.
	DefaultMaxRetries = 3

	baseBackoff = 2 * time.Second
	maxBackoff  = 32 * time.Second
)

var (
	// ErrAPIKeyNotSet — не задан ключ API.
	ErrAPIKeyNotSet = errors.New("openai api key not set")

	// ErrNoChoices — API вернул ответ без вариантов.
	ErrNoChoices = errors.New("no completion choices returned")

	// ErrMaxRetriesExceeded — исчерпаны повторы при rate limit.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// OpenAIConfig — конфигурация OpenAIGenerator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // пусто — api.openai.com
	Model       string
	Temperature float64
	MaxTokens   int // 0 — без ограничения
	MaxRetries  int
	Logger      *slog.Logger
}

// OpenAIGenerator — worker.TextGenerator поверх Chat Completions API.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	backoff     func(attempt int) time.Duration
	logger      *slog.Logger
}

// NewOpenAIGenerator создаёт генератор.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// повторы делаем сами, с логированием
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		backoff:     backoffFor,
		logger:      cfg.Logger,
	}, nil
}

// Model возвращает имя модели.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate отправляет prompt одним user-сообщением и возвращает текст ответа.
//
// При 429 запрос повторяется с экспоненциальной задержкой.
// Остальные ошибки возвращаются сразу: ретраи уровня job делает RetryableRunner.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			g.logger.Warn("openai rate limited, retrying",
				"attempt", attempt,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		completion, err := g.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("openai chat completion: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", ErrNoChoices
		}

		g.logger.Debug("openai completion",
			"model", completion.Model,
			"tokens", completion.Usage.TotalTokens,
		)
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// backoffFor возвращает задержку перед повтором attempt (с 1):
// 2s, 4s, 8s, ... не больше 32s.
func backoffFor(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
