package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultClaudeMaxTokens = 1024

// ClaudeModel exposes the Anthropic Messages API as an eino chat model.
type ClaudeModel struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewClaudeModel(apiKey, modelName string, maxTokens int, temperature float32) *ClaudeModel {
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	return &ClaudeModel{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *ClaudeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{}, opts...)

	system, rest := splitSystem(input)
	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		if m.Role == schema.Assistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	if len(msgs) == 0 {
		return nil, errors.New("claude: no user message")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
	}
	if common.MaxTokens != nil {
		params.MaxTokens = int64(*common.MaxTokens)
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return schema.AssistantMessage(out.String(), nil), nil
}

func (c *ClaudeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return singleFrame(msg), nil
}
