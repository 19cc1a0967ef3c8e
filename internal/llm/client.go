package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/datachat/datachat/internal/chat"
	"github.com/datachat/datachat/internal/config"
)

// OpenAIClient sends context windows to the OpenAI chat completions
// API. It implements the conversation service's Completer.
type OpenAIClient struct {
	client    openai.Client
	model     openai.ChatModel
	maxTokens int
}

// NewOpenAIClient creates a client from the downstream configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     openai.ChatModel(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends the system prompt and the selected window downstream
// and returns the assistant's answer. The call blocks until the model
// responds or ctx is done; cancellation is the caller's mechanism.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, msgs []chat.Message) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:  FormatHistory(systemPrompt, msgs),
		Model:     c.model,
		MaxTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// FormatHistory converts a context window into OpenAI chat messages.
// Table parts are rendered as text context; image parts become a short
// marker since this backend submits text-only windows downstream.
func FormatHistory(systemPrompt string, msgs []chat.Message) []openai.ChatCompletionMessageParamUnion {
	formatted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		formatted = append(formatted, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		text := renderParts(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case chat.RoleAssistant:
			formatted = append(formatted, openai.AssistantMessage(text))
		case chat.RoleSystem:
			formatted = append(formatted, openai.SystemMessage(text))
		default:
			formatted = append(formatted, openai.UserMessage(text))
		}
	}
	return formatted
}

func renderParts(parts []chat.ContentPart) string {
	var b strings.Builder
	for _, part := range parts {
		switch part.Kind {
		case chat.PartText:
			b.WriteString(part.Text)
		case chat.PartImage:
			b.WriteString("[image attachment]")
		case chat.PartTable:
			b.WriteString(renderTableContext(part))
		}
	}
	return b.String()
}

// renderTableContext formats an attached dataset preview so the model
// can reference the upload in later turns.
func renderTableContext(part chat.ContentPart) string {
	var b strings.Builder
	b.WriteString("Tabular data attached")
	if part.TableRef != "" {
		fmt.Fprintf(&b, " (%s)", part.TableRef)
	}
	if part.TablePreview != "" {
		b.WriteString(". First rows:\n")
		b.WriteString(part.TablePreview)
	}
	return b.String()
}
