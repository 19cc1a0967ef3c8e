package analyze

import "time"

// Path identifies which analyzer produced a result.
const (
	PathSimple   = "simple"
	PathAI       = "ai"
	PathFallback = "simple_fallback"
)

// Metadata carries provenance for an analysis result.
type Metadata struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	DatasetRows    int    `json:"dataset_rows"`
	Sampled        bool   `json:"sampled"`
	Path           string `json:"path"`
}

// Result is the uniform envelope returned by every analysis path.
// Failures are returned inside the envelope, never as faults that
// abort the conversation.
type Result struct {
	Kind      string    `json:"type"`
	Success   bool      `json:"success"`
	Result    any       `json:"result,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

func successResult(kind string, payload any, meta Metadata) Result {
	return Result{
		Kind:      kind,
		Success:   true,
		Result:    payload,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
}

func errorResult(message string, meta Metadata) Result {
	return Result{
		Kind:      "error",
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
}
