package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends a completion request to Gemini and returns the response.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	cs, lastMsg, err := c.prepareChat(req)
	if err != nil {
		return LLMResponse{}, err
	}

	resp, err := cs.SendMessage(ctx, genai.Text(lastMsg.Content))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}

	text, stopReason, err := extractCandidateText(resp)
	if err != nil {
		return LLMResponse{}, err
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(text),
		StopReason: stopReason,
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// CompleteStream streams a completion, invoking onFragment for each text
// fragment as it arrives, and returns the assembled response.
func (c *GeminiLLMClient) CompleteStream(ctx context.Context, req LLMRequest, onFragment func(string)) (LLMResponse, error) {
	cs, lastMsg, err := c.prepareChat(req)
	if err != nil {
		return LLMResponse{}, err
	}

	iter := cs.SendMessageStream(ctx, genai.Text(lastMsg.Content))

	var full strings.Builder
	var stopReason string
	var usage TokenUsage
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return LLMResponse{}, fmt.Errorf("conversation: gemini stream failed: %w", err)
		}

		text, reason, err := extractCandidateText(resp)
		if err != nil {
			continue // empty chunk, keep pulling
		}
		if reason != "" {
			stopReason = reason
		}
		if resp.UsageMetadata != nil {
			usage = TokenUsage{
				InputTokens:  resp.UsageMetadata.PromptTokenCount,
				OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
				TotalTokens:  resp.UsageMetadata.TotalTokenCount,
			}
		}
		if text == "" {
			continue
		}
		full.WriteString(text)
		if onFragment != nil {
			onFragment(text)
		}
	}

	return LLMResponse{
		Text:       strings.TrimSpace(full.String()),
		Usage:      usage,
		StopReason: stopReason,
	}, nil
}

// prepareChat builds the chat session and returns the final message to send.
func (c *GeminiLLMClient) prepareChat(req LLMRequest) (*genai.ChatSession, ChatMessage, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	cs := model.StartChat()

	if len(req.Messages) > 1 {
		for _, msg := range req.Messages[:len(req.Messages)-1] {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				continue
			}
			if msg.Role == ChatRoleSystem {
				continue
			}

			role := "user"
			if msg.Role == ChatRoleAssistant {
				role = "model"
			}

			cs.History = append(cs.History, &genai.Content{
				Role:  role,
				Parts: []genai.Part{genai.Text(content)},
			})
		}
	}

	if len(req.Messages) == 0 {
		return nil, ChatMessage{}, errors.New("conversation: gemini requires at least one message")
	}

	return cs, req.Messages[len(req.Messages)-1], nil
}

func extractCandidateText(resp *genai.GenerateContentResponse) (string, string, error) {
	if len(resp.Candidates) == 0 {
		return "", "", errors.New("conversation: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", string(candidate.FinishReason), errors.New("conversation: gemini returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), string(candidate.FinishReason), nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ LLMClient = (*GeminiLLMClient)(nil)
var _ StreamingLLMClient = (*GeminiLLMClient)(nil)
