package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Summarizer is the port for LLM summarization.
// Implementations send at most the tail of history, never retry, and report
// every failure as *domain.SummarizationError.
type Summarizer interface {
	Summarize(ctx context.Context, history, instruction string, maxOutputTokens int) (string, error)
}
