package context

import (
	"fmt"
	"testing"

	"github.com/datachat/datachat/internal/chat"
	"github.com/datachat/datachat/internal/config"
)

func makeHistory(n int) []chat.Message {
	msgs := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		msgs = append(msgs, chat.Message{
			ID:   fmt.Sprintf("msg-%d", i),
			Role: role,
			Content: []chat.ContentPart{
				{Kind: chat.PartText, Text: fmt.Sprintf("message number %d with a few words of padding", i)},
			},
		})
	}
	return msgs
}

func windowIDs(w ContextWindow) []string {
	ids := make([]string, 0, len(w.Messages))
	for _, m := range w.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestSelect_WithinBudget(t *testing.T) {
	m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 100000})

	history := makeHistory(10)
	w := m.Select(history)

	if w.Truncated {
		t.Error("window should not be truncated when history fits")
	}
	if w.KeptMessages != 10 || w.RemovedMessages != 0 {
		t.Errorf("expected all 10 messages kept, got kept=%d removed=%d", w.KeptMessages, w.RemovedMessages)
	}
	for i, msg := range w.Messages {
		if msg.ID != history[i].ID {
			t.Errorf("message %d reordered: got %s, want %s", i, msg.ID, history[i].ID)
		}
	}
}

func TestSelect_MessageBudgetTruncation(t *testing.T) {
	m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 100000})

	history := makeHistory(25)
	w := m.Select(history)

	if !w.Truncated {
		t.Error("window should be truncated")
	}
	if w.KeptMessages != 20 {
		t.Errorf("expected 20 messages kept, got %d", w.KeptMessages)
	}
	if w.RemovedMessages != 5 {
		t.Errorf("expected 5 messages removed, got %d", w.RemovedMessages)
	}

	// First two messages pinned.
	if w.Messages[0].ID != "msg-0" || w.Messages[1].ID != "msg-1" {
		t.Errorf("preserved head lost: got %s, %s", w.Messages[0].ID, w.Messages[1].ID)
	}

	// The gap is in the middle: messages 2..6 dropped, 7..24 kept.
	kept := make(map[string]bool)
	for _, msg := range w.Messages {
		kept[msg.ID] = true
	}
	for i := 2; i <= 6; i++ {
		if kept[fmt.Sprintf("msg-%d", i)] {
			t.Errorf("middle message msg-%d should have been dropped", i)
		}
	}
	if !kept["msg-24"] {
		t.Error("most recent message should be kept")
	}
}

func TestSelect_TokenBudgetEviction(t *testing.T) {
	m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 100000})

	history := makeHistory(25)
	// Budget only fits a handful of messages.
	w := m.SelectWithBudget(history, 20, 2, 100)

	if !w.Truncated {
		t.Error("window should be truncated")
	}
	if w.KeptMessages >= 20 {
		t.Errorf("token budget should shrink window below 20, got %d", w.KeptMessages)
	}
	if w.Messages[0].ID != "msg-0" || w.Messages[1].ID != "msg-1" {
		t.Error("preserved head lost under token pressure")
	}
	if w.Messages[len(w.Messages)-1].ID != "msg-24" {
		t.Error("latest message lost under token pressure")
	}
}

func TestSelect_OrderPreserved(t *testing.T) {
	m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 10, PreserveFirst: 2, TokenLimit: 200})

	history := makeHistory(30)
	w := m.Select(history)

	// Output must be a subsequence of the input in original order.
	pos := map[string]int{}
	for i, msg := range history {
		pos[msg.ID] = i
	}
	last := -1
	for _, msg := range w.Messages {
		p, ok := pos[msg.ID]
		if !ok {
			t.Fatalf("unknown message %s in window", msg.ID)
		}
		if p <= last {
			t.Fatalf("window not in original order at %s", msg.ID)
		}
		last = p
	}
}

func TestSelect_Idempotent(t *testing.T) {
	cases := []struct {
		name          string
		history       int
		maxMessages   int
		preserveFirst int
		tokenLimit    int
	}{
		{"within budget", 10, 20, 2, 100000},
		{"message truncation", 25, 20, 2, 100000},
		{"token truncation", 40, 20, 2, 150},
		{"tiny budget", 40, 4, 1, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: tc.maxMessages, PreserveFirst: tc.preserveFirst, TokenLimit: tc.tokenLimit})

			first := m.SelectWithBudget(makeHistory(tc.history), tc.maxMessages, tc.preserveFirst, tc.tokenLimit)
			second := m.SelectWithBudget(first.Messages, tc.maxMessages, tc.preserveFirst, tc.tokenLimit)

			firstIDs := windowIDs(first)
			secondIDs := windowIDs(second)
			if len(firstIDs) != len(secondIDs) {
				t.Fatalf("re-selection changed window size: %d -> %d", len(firstIDs), len(secondIDs))
			}
			for i := range firstIDs {
				if firstIDs[i] != secondIDs[i] {
					t.Fatalf("re-selection changed message %d: %s -> %s", i, firstIDs[i], secondIDs[i])
				}
			}
			if second.Truncated {
				t.Error("re-selection of an already selected window must not truncate")
			}
		})
	}
}

func TestSelect_EdgeCases(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 1000})
		w := m.Select(nil)
		if len(w.Messages) != 0 || w.Truncated {
			t.Errorf("empty history should produce an empty, untruncated window: %+v", w)
		}
	})

	t.Run("non-positive max messages", func(t *testing.T) {
		m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 1000})
		w := m.SelectWithBudget(makeHistory(5), 0, 2, 1000)
		if len(w.Messages) != 0 {
			t.Errorf("expected empty window, got %d messages", len(w.Messages))
		}
		if !w.Truncated {
			t.Error("expected truncated window")
		}
	})

	t.Run("preserveFirst clamped to maxMessages-1", func(t *testing.T) {
		m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 5, PreserveFirst: 10, TokenLimit: 100000})
		w := m.SelectWithBudget(makeHistory(12), 5, 10, 100000)
		if w.KeptMessages != 5 {
			t.Errorf("expected 5 messages, got %d", w.KeptMessages)
		}
		// Clamped to 4 preserved plus the most recent message.
		if w.Messages[0].ID != "msg-0" {
			t.Errorf("expected preserved head, got %s", w.Messages[0].ID)
		}
		if w.Messages[4].ID != "msg-11" {
			t.Errorf("expected latest message in last slot, got %s", w.Messages[4].ID)
		}
	})

	t.Run("disabled window passes through", func(t *testing.T) {
		m := NewManager(config.WindowConfig{Enabled: false, MaxMessages: 2, PreserveFirst: 1, TokenLimit: 10})
		w := m.Select(makeHistory(30))
		if w.KeptMessages != 30 || w.Truncated {
			t.Errorf("disabled window must pass history through: %+v", w)
		}
	})
}

func TestStats(t *testing.T) {
	m := NewManager(config.WindowConfig{Enabled: true, MaxMessages: 20, PreserveFirst: 2, TokenLimit: 100000})

	history := makeHistory(10)
	stats := m.Stats(history)

	if !stats.WithinLimits {
		t.Error("10 messages should be within limits")
	}
	if stats.TotalMessages != 10 {
		t.Errorf("expected 10 total messages, got %d", stats.TotalMessages)
	}
	if stats.MessageUsagePercent != 50 {
		t.Errorf("expected 50%% message usage, got %f", stats.MessageUsagePercent)
	}
	if stats.EstimatedTokens <= 0 {
		t.Error("estimated tokens should be positive")
	}
	if WarningMessage(stats) != "" {
		t.Error("no warning expected within limits")
	}

	over := m.Stats(makeHistory(25))
	if over.WithinLimits {
		t.Error("25 messages should exceed the message budget")
	}
	if WarningMessage(over) == "" {
		t.Error("expected a warning over the message budget")
	}
}
