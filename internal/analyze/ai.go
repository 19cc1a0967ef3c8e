package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/datachat/datachat/internal/dataset"
)

// Engine runs an AI-driven analysis query against a prepared state.
// The call may block; implementations must honor context cancellation.
type Engine interface {
	Analyze(ctx context.Context, state *State, query string) (string, error)
}

// OpenAIEngine answers analysis queries with a chat completion primed
// with the dataset schema and a preview of its rows.
type OpenAIEngine struct {
	client    openai.Client
	model     openai.ChatModel
	maxTokens int
}

// NewOpenAIEngine creates an engine backed by the OpenAI API.
func NewOpenAIEngine(apiKey, model string, maxTokens int) *OpenAIEngine {
	return &OpenAIEngine{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     openai.ChatModel(model),
		maxTokens: maxTokens,
	}
}

// Analyze sends the query with the state's schema prompt as system
// context. Cancellation and deadline come from ctx.
func (e *OpenAIEngine) Analyze(ctx context.Context, state *State, query string) (string, error) {
	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(state.SchemaPrompt),
			openai.UserMessage(query),
		},
		Model:     e.model,
		MaxTokens: openai.Int(int64(e.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("analysis completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("analysis completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// BuildSchemaPrompt renders the dataset's schema, statistics, and a row
// preview into the system prompt used to prime the analysis model.
func BuildSchemaPrompt(ds *dataset.Dataset) string {
	info := ds.Info()

	var b strings.Builder
	b.WriteString("You are a data analyst. Answer questions about the following dataset concisely and precisely.\n\n")
	fmt.Fprintf(&b, "Dataset: %d rows x %d columns\n", info.Rows, info.Columns)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(info.ColumnNames, ", "))

	b.WriteString("\nColumn types:\n")
	for _, col := range info.ColumnNames {
		fmt.Fprintf(&b, "  - %s: %s\n", col, info.DTypes[col])
	}

	if stats := ds.SummaryStats(); len(stats) > 0 {
		b.WriteString("\nNumeric column statistics:\n")
		for _, col := range info.ColumnNames {
			s, ok := stats[col]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  - %s: min=%.2f mean=%.2f median=%.2f max=%.2f std=%.2f\n",
				col, s.Min, s.Mean, s.Median, s.Max, s.Std)
		}
	}

	b.WriteString("\nFirst rows:\n")
	b.WriteString(ds.PreviewString(previewRows))

	return b.String()
}
