package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the provider-neutral message shape stored in session
// history and fed back to the model on every turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest carries one completion call. Temperature zero is used for
// the deterministic date/specialty extraction prompts; chat turns leave
// the provider defaults in place.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// StreamingLLMClient is an optional capability of an LLMClient. Checked via
// type assertion so non-streaming fakes keep working in tests; onFragment is
// called with each text fragment in stream order before the full response is
// returned.
type StreamingLLMClient interface {
	CompleteStream(ctx context.Context, req LLMRequest, onFragment func(string)) (LLMResponse, error)
}
