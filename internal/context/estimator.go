package context

import (
	"math"
	"strings"

	"github.com/datachat/datachat/internal/chat"
)

const (
	// Rough estimation for English text: ~1.3 tokens per word.
	tokensPerWord = 1.3

	// Vision models bill a flat amount per image regardless of
	// resolution.
	imageTokens = 765

	// Per-message overhead for role and structure.
	messageOverheadTokens = 4
)

// TokenEstimator approximates the token cost of messages. Estimates are
// deliberately cheap and approximate; callers must not depend on exact
// counts, only on monotonicity and boundary behavior.
type TokenEstimator struct{}

// NewTokenEstimator creates a new token estimator.
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// EstimateText estimates tokens for a plain text string.
func (te *TokenEstimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * tokensPerWord))
}

// EstimateMessage estimates tokens for a single message, summing its
// content parts plus a fixed structural overhead. Unknown part kinds
// cost zero; estimation never fails a request.
func (te *TokenEstimator) EstimateMessage(msg chat.Message) int {
	total := 0
	for _, part := range msg.Content {
		switch part.Kind {
		case chat.PartText:
			total += te.EstimateText(part.Text)
		case chat.PartImage:
			total += imageTokens
		case chat.PartTable:
			// Only the serialized preview travels with the message,
			// never the full dataset.
			total += te.EstimateText(part.TablePreview)
		}
	}
	return total + messageOverheadTokens
}

// EstimateConversation estimates tokens across an ordered message
// sequence.
func (te *TokenEstimator) EstimateConversation(msgs []chat.Message) int {
	total := 0
	for _, msg := range msgs {
		total += te.EstimateMessage(msg)
	}
	return total
}
