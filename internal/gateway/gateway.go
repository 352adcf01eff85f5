// Package gateway provides a uniform interface over language-model
// providers, including the structured tool-calling protocol. Adapters
// normalize each provider's response shape into the common ModelResponse;
// the rest of the system never sees provider-specific payloads.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls echoes an assistant turn's tool calls when replaying the
	// conversation back to the provider.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes one callable tool. Schema is a JSON Schema
// document for the tool's arguments and is the only executable surface the
// model ever sees.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ToolCall is a structured function invocation emitted by the model.
// Arguments is the raw JSON payload; callers validate it before use.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionRequest carries a conversation plus the tools the model may
// call.
type CompletionRequest struct {
	Messages []ChatMessage
	Tools    []ToolDefinition
	// ForceToolName, when set, instructs the provider to call that tool.
	ForceToolName string
}

// ModelResponse is either a free-text reply or a list of tool calls.
type ModelResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model chose to call tools.
func (r ModelResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Provider is the uniform interface every model adapter implements.
// Complete performs exactly one provider round trip: timeouts surface as
// ErrCodeProviderTimeout and are never retried here — retry policy belongs
// to the orchestrator.
type Provider interface {
	// Name returns the provider identifier for logging.
	Name() string
	// Complete sends the conversation and returns the normalized response.
	Complete(ctx context.Context, req CompletionRequest) (ModelResponse, error)
	// SupportsTools reports whether the provider can handle tool calls.
	SupportsTools() bool
}

// ProviderConfig is the recognized per-provider configuration.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,url"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	Model    string `yaml:"model" json:"model" validate:"required"`
	// Timeout bounds a single completion call.
	Timeout       time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	SupportsTools bool          `yaml:"supports_tools" json:"supports_tools"`
	// Headers are sent verbatim with every request (e.g. referer headers
	// some aggregators require).
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Validate validates the ProviderConfig fields.
func (c *ProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid provider config", err)
	}

	return nil
}
