package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/pkg/errors"
	"go.uber.org/zap"
)

// OpenAIClient speaks the OpenAI-compatible chat completions protocol.
// Hosted APIs, aggregators and local inference endpoints all expose this
// wire shape, so one adapter covers them.
type OpenAIClient struct {
	config ProviderConfig
	client *http.Client
	log    *logger.Logger
}

// NewOpenAIClient creates a provider adapter for an OpenAI-compatible
// endpoint.
func NewOpenAIClient(config ProviderConfig, log *logger.Logger) (*OpenAIClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &OpenAIClient{
		config: config,
		client: &http.Client{},
		log:    log,
	}, nil
}

// Name implements the Provider interface.
func (c *OpenAIClient) Name() string {
	return "openai_compatible"
}

// SupportsTools implements the Provider interface.
func (c *OpenAIClient) SupportsTools() bool {
	return c.config.SupportsTools
}

// Wire types for the chat completions protocol.

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Arguments   string          `json:"arguments,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireRequest struct {
	Model      string        `json:"model"`
	Messages   []wireMessage `json:"messages"`
	Tools      []wireTool    `json:"tools,omitempty"`
	ToolChoice any           `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements the Provider interface.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (ModelResponse, error) {
	if len(req.Tools) > 0 && !c.config.SupportsTools {
		return ModelResponse{}, errors.Newf(errors.ErrCodeUnsupportedToolCall,
			"provider model %s does not support tool calling", c.config.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(c.buildWireRequest(req))
	if err != nil {
		return ModelResponse{}, errors.Wrap(errors.ErrCodeProviderRequestFailed, "failed to encode completion request", err)
	}

	url := strings.TrimSuffix(c.config.Endpoint, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ModelResponse{}, errors.Wrap(errors.ErrCodeProviderRequestFailed, "failed to build completion request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	for key, value := range c.config.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return ModelResponse{}, errors.Wrapf(errors.ErrCodeProviderTimeout, err,
				"provider did not answer within %s", c.config.Timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return ModelResponse{}, errors.Wrap(errors.ErrCodeCancelled, "completion request cancelled", err)
		}

		return ModelResponse{}, errors.Wrap(errors.ErrCodeProviderRequestFailed, "provider request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{}, errors.Wrap(errors.ErrCodeProviderBadResponse, "failed to read provider response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Provider returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.config.Model),
		)

		return ModelResponse{}, errors.Newf(errors.ErrCodeProviderRequestFailed,
			"provider returned status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	return c.parseWireResponse(payload)
}

func (c *OpenAIClient) buildWireRequest(req CompletionRequest) wireRequest {
	out := wireRequest{
		Model:    c.config.Model,
		Messages: make([]wireMessage, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		wm := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}

		for _, tc := range msg.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		out.Messages = append(out.Messages, wm)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema,
			},
		})
	}

	if req.ForceToolName != "" {
		out.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": req.ForceToolName},
		}
	}

	return out
}

func (c *OpenAIClient) parseWireResponse(payload []byte) (ModelResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return ModelResponse{}, errors.Wrap(errors.ErrCodeProviderBadResponse, "failed to decode provider response", err)
	}

	if wire.Error != nil {
		return ModelResponse{}, errors.Newf(errors.ErrCodeProviderRequestFailed,
			"provider error: %s", wire.Error.Message)
	}

	if len(wire.Choices) == 0 {
		return ModelResponse{}, errors.New(errors.ErrCodeProviderBadResponse, "provider response has no choices")
	}

	message := wire.Choices[0].Message

	out := ModelResponse{Content: message.Content}

	for i, tc := range message.ToolCalls {
		if tc.Function.Name == "" {
			return ModelResponse{}, errors.Newf(errors.ErrCodeProviderBadResponse,
				"tool call %d has no function name", i)
		}

		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}

		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
