package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped with retry,
// per-call timeout and logging middleware. It returns ErrNotConfigured when
// cfg selects no provider.
func NewProvider(ctx context.Context, cfg Config, events store.LLMEventWriter, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var base Provider
	var err error

	switch cfg.Provider {
	case "":
		return nil, ErrNotConfigured
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			logger.Info("llm call rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}

	// caller → retry → timeout → logging → base
	logged := WithLogging(base, events, logger)
	bounded := WithTimeout(logged, cfg.Timeout)
	return WithRetry(bounded, retry), nil
}
