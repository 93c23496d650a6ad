package narrative

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAdvisor/config"
)

// NewChatModel builds the configured provider. It returns a nil model and
// ErrNoModel when generation is disabled or the provider has no key.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	if cfg.LLMProvider == "none" {
		return nil, ErrNoModel
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s api key is not set", ErrNoModel, cfg.LLMProvider)
	}

	maxTokens := cfg.LLMMaxTokens
	var (
		m   model.BaseChatModel
		err error
	)
	switch cfg.LLMProvider {
	case "deepseek":
		m, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    apiKey,
			Model:     cfg.LLMModel,
			MaxTokens: maxTokens,
		})
	case "openai":
		m, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    apiKey,
			Model:     cfg.LLMModel,
			MaxTokens: &maxTokens,
		})
	case "claude":
		m = NewClaudeModel(apiKey, cfg.LLMModel, maxTokens, cfg.LLMTemperature)
	case "gemini":
		m, err = NewGeminiModel(ctx, apiKey, cfg.LLMModel, cfg.LLMTemperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.LLMProvider, err)
	}

	if d := cfg.LLMTimeout(); d > 0 {
		m = WithCallTimeout(m, d)
	}
	return m, nil
}

// ModelName reports which model a config resolves to, for audit records.
func ModelName(cfg *config.Config) string {
	if cfg.LLMProvider == "none" || cfg.APIKey() == "" {
		return "none"
	}
	return cfg.LLMProvider + "/" + cfg.LLMModel
}

type timeoutModel struct {
	inner   model.BaseChatModel
	timeout time.Duration
}

// WithCallTimeout bounds every Generate call of m by d.
func WithCallTimeout(m model.BaseChatModel, d time.Duration) model.BaseChatModel {
	return &timeoutModel{inner: m, timeout: d}
}

func (t *timeoutModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, input, opts...)
}

// Stream is not bounded; the caller owns the reader's lifetime.
func (t *timeoutModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return t.inner.Stream(ctx, input, opts...)
}

// singleFrame adapts a Generate-only provider to Stream.
func singleFrame(msg *schema.Message) *schema.StreamReader[*schema.Message] {
	return schema.StreamReaderFromArray([]*schema.Message{msg})
}

func splitSystem(input []*schema.Message) (string, []*schema.Message) {
	var system string
	rest := make([]*schema.Message, 0, len(input))
	for _, m := range input {
		if m == nil {
			continue
		}
		if m.Role == schema.System {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
