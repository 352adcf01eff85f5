// Package compiler turns free-form user text into a validated screen or
// strategy specification via the model gateway's tool-calling protocol.
//
// This package is the trust boundary of the system: the language model is
// an untrusted translator. Its output is only ever accepted as data
// conforming to the specification schema, validated field by field, and is
// never executed.
package compiler

import (
	"context"
	"time"

	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"go.uber.org/zap"
)

// maxAttempts bounds the gateway round trips per compilation: the initial
// attempt plus one re-prompt carrying the validation error.
const maxAttempts = 2

// Config holds the compiler limits.
type Config struct {
	// MaxLimit caps the result limit a specification may request.
	MaxLimit int `yaml:"max_limit" json:"max_limit" validate:"gt=0"`
}

// DefaultConfig returns the compiler defaults.
func DefaultConfig() Config {
	return Config{MaxLimit: 200}
}

// Compiler compiles user text into specifications through a model provider.
type Compiler struct {
	provider gateway.Provider
	log      *logger.Logger
	maxLimit int
	clock    func() time.Time
}

// NewCompiler creates a compiler on top of the given provider.
func NewCompiler(provider gateway.Provider, config Config, log *logger.Logger) *Compiler {
	maxLimit := config.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultConfig().MaxLimit
	}

	return &Compiler{
		provider: provider,
		log:      log,
		maxLimit: maxLimit,
		clock:    time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (c *Compiler) WithClock(clock func() time.Time) *Compiler {
	c.clock = clock

	return c
}

// Compile translates user text into a validated specification. The hints
// are relevant context retrieved for this user (risk preferences, focus
// markets) and only influence the prompt, never the validation.
//
// The protocol: send the text plus the tool schemas; expect a tool call
// whose arguments are a candidate specification; validate it; on failure
// re-prompt once with the validation error appended; on the second failure
// surface ErrCodeUnresolvableIntent.
func (c *Compiler) Compile(ctx context.Context, userText string, hints []string) (types.Specification, error) {
	tools, err := toolDefinitions()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to generate tool schemas", err)
	}

	messages := []gateway.ChatMessage{
		{Role: gateway.RoleSystem, Content: systemPrompt(hints)},
		{Role: gateway.RoleUser, Content: userText},
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := c.provider.Complete(ctx, gateway.CompletionRequest{
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			// Transport-level failures are not re-prompted: timeouts are
			// retried by the orchestrator, capability gaps are terminal.
			return nil, err
		}

		if !response.HasToolCalls() {
			c.log.Debug("Model answered without a tool call",
				zap.Int("attempt", attempt),
			)

			lastErr = errors.New(errors.ErrCodeUnresolvableIntent, "model did not produce a specification")
			messages = append(messages,
				gateway.ChatMessage{Role: gateway.RoleAssistant, Content: response.Content},
				gateway.ChatMessage{Role: gateway.RoleUser, Content: "Respond with a compile_screen or compile_strategy tool call, not free text."},
			)

			continue
		}

		call := response.ToolCalls[0]

		spec, err := c.buildSpecification(call)
		if err == nil {
			return spec, nil
		}

		c.log.Debug("Specification payload failed validation",
			zap.Int("attempt", attempt),
			zap.String("tool", call.Name),
			zap.Error(err),
		)

		lastErr = err
		messages = append(messages,
			gateway.ChatMessage{Role: gateway.RoleAssistant, ToolCalls: []gateway.ToolCall{call}},
			gateway.ChatMessage{
				Role:       gateway.RoleTool,
				ToolCallID: call.ID,
				Content:    "Specification rejected: " + err.Error() + ". Fix the arguments and call the tool again.",
			},
		)
	}

	return nil, errors.Wrapf(errors.ErrCodeUnresolvableIntent, lastErr,
		"could not compile a valid specification in %d attempts", maxAttempts)
}

func (c *Compiler) buildSpecification(call gateway.ToolCall) (types.Specification, error) {
	switch call.Name {
	case ToolNameCompileScreen:
		return c.buildScreenSpecification(call.Arguments)
	case ToolNameCompileStrategy:
		return c.buildStrategySpecification(call.Arguments)
	default:
		return nil, errors.Newf(errors.ErrCodeToolCallParseFailed, "model called unknown tool %q", call.Name)
	}
}
