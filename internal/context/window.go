package context

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/datachat/datachat/internal/chat"
	"github.com/datachat/datachat/internal/config"
)

// Manager selects the subset of a conversation's history submitted
// downstream, keeping the window inside the configured message and token
// budgets.
type Manager struct {
	estimator *TokenEstimator
	cfg       config.WindowConfig
}

// NewManager creates a new context window manager.
func NewManager(cfg config.WindowConfig) *Manager {
	return &Manager{
		estimator: NewTokenEstimator(),
		cfg:       cfg,
	}
}

// Estimator exposes the manager's token estimator.
func (m *Manager) Estimator() *TokenEstimator {
	return m.estimator
}

// ContextWindow is the derived view of a conversation selected for
// submission. Recomputed on every turn, never persisted.
type ContextWindow struct {
	Messages        []chat.Message `json:"messages"`
	TotalMessages   int            `json:"total_messages"`
	KeptMessages    int            `json:"kept_messages"`
	RemovedMessages int            `json:"removed_messages"`
	EstimatedTokens int            `json:"estimated_tokens"`
	Truncated       bool           `json:"truncated"`
	PreservedCount  int            `json:"preserved_count"`
}

// Select applies the configured budgets to the history. See
// SelectWithBudget for the selection strategy.
func (m *Manager) Select(history []chat.Message) ContextWindow {
	if !m.cfg.Enabled {
		return ContextWindow{
			Messages:        history,
			TotalMessages:   len(history),
			KeptMessages:    len(history),
			EstimatedTokens: m.estimator.EstimateConversation(history),
		}
	}
	return m.SelectWithBudget(history, m.cfg.MaxMessages, m.cfg.PreserveFirst, m.cfg.TokenLimit)
}

// SelectWithBudget selects the context window for the given budgets.
//
// Strategy:
//  1. Histories within the message budget pass through untouched.
//  2. Otherwise the first preserveFirst messages are pinned and the most
//     recent messages fill the remaining slots.
//  3. While the window is still over the token budget, messages are
//     removed from the midpoint of the non-preserved portion, keeping
//     both the opening context and the latest turns intact.
//
// The function is a pure function of its inputs and idempotent:
// selecting over its own output returns the same messages.
func (m *Manager) SelectWithBudget(history []chat.Message, maxMessages, preserveFirst, maxTokens int) ContextWindow {
	if maxMessages <= 0 {
		return ContextWindow{
			Messages:        []chat.Message{},
			TotalMessages:   len(history),
			RemovedMessages: len(history),
			Truncated:       true,
		}
	}

	// preserveFirst >= maxMessages is a configuration error; clamp
	// instead of failing.
	if preserveFirst >= maxMessages {
		preserveFirst = maxMessages - 1
	}
	if preserveFirst < 0 {
		preserveFirst = 0
	}

	if len(history) <= maxMessages {
		return ContextWindow{
			Messages:        history,
			TotalMessages:   len(history),
			KeptMessages:    len(history),
			EstimatedTokens: m.estimator.EstimateConversation(history),
			PreservedCount:  min(preserveFirst, len(history)),
		}
	}

	preserved := history[:preserveFirst]
	candidates := history[preserveFirst:]

	slots := maxMessages - preserveFirst
	recent := candidates[len(candidates)-slots:]

	window := make([]chat.Message, 0, maxMessages)
	window = append(window, preserved...)
	window = append(window, recent...)

	tokens := m.estimator.EstimateConversation(window)

	// Still over the token budget: evict from the middle of the
	// non-preserved portion until it fits or only the preserved head
	// plus a couple of recent turns remain.
	for tokens > maxTokens && len(window) > preserveFirst+2 {
		idx := preserveFirst + (len(window)-preserveFirst)/2
		tokens -= m.estimator.EstimateMessage(window[idx])
		window = append(window[:idx], window[idx+1:]...)
	}

	removed := len(history) - len(window)
	log.Debug("sliding window applied",
		"total", len(history), "kept", len(window), "tokens", tokens)

	return ContextWindow{
		Messages:        window,
		TotalMessages:   len(history),
		KeptMessages:    len(window),
		RemovedMessages: removed,
		EstimatedTokens: tokens,
		Truncated:       removed > 0,
		PreservedCount:  min(preserveFirst, len(window)),
	}
}

// ContextStats summarizes how a conversation sits against its budgets.
type ContextStats struct {
	TotalMessages       int     `json:"total_messages"`
	EstimatedTokens     int     `json:"estimated_tokens"`
	MaxMessages         int     `json:"max_messages"`
	TokenLimit          int     `json:"token_limit"`
	WithinLimits        bool    `json:"within_limits"`
	MessageUsagePercent float64 `json:"message_usage_percent"`
	TokenUsagePercent   float64 `json:"token_usage_percent"`
}

// Stats reports the current context window status for a history.
func (m *Manager) Stats(history []chat.Message) ContextStats {
	tokens := m.estimator.EstimateConversation(history)

	stats := ContextStats{
		TotalMessages:   len(history),
		EstimatedTokens: tokens,
		MaxMessages:     m.cfg.MaxMessages,
		TokenLimit:      m.cfg.TokenLimit,
	}
	stats.WithinLimits = len(history) <= m.cfg.MaxMessages && tokens <= m.cfg.TokenLimit
	if m.cfg.MaxMessages > 0 {
		stats.MessageUsagePercent = float64(len(history)) / float64(m.cfg.MaxMessages) * 100
	}
	if m.cfg.TokenLimit > 0 {
		stats.TokenUsagePercent = float64(tokens) / float64(m.cfg.TokenLimit) * 100
	}
	return stats
}

// WarningMessage returns a human-readable warning when the context is
// over its limits, or an empty string.
func WarningMessage(stats ContextStats) string {
	if stats.WithinLimits {
		return ""
	}
	warning := "Context window optimization needed:"
	if stats.TotalMessages > stats.MaxMessages {
		warning += fmt.Sprintf(" message count (%d) exceeds limit (%d);",
			stats.TotalMessages, stats.MaxMessages)
	}
	if stats.EstimatedTokens > stats.TokenLimit {
		warning += fmt.Sprintf(" token count (~%d) exceeds limit (%d);",
			stats.EstimatedTokens, stats.TokenLimit)
	}
	return warning
}
