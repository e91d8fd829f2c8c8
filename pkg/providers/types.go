package providers

import (
	"context"

	"github.com/clawlab/tinyclaw/pkg/providers/protocoltypes"
)

type Message = protocoltypes.Message
type ToolCall = protocoltypes.ToolCall
type FunctionCall = protocoltypes.FunctionCall
type ToolDefinition = protocoltypes.ToolDefinition
type ToolFunctionDefinition = protocoltypes.ToolFunctionDefinition
type LLMResponse = protocoltypes.LLMResponse
type UsageInfo = protocoltypes.UsageInfo

// NormalizeToolCall re-exports the protocoltypes helper.
var NormalizeToolCall = protocoltypes.NormalizeToolCall

// LLMProvider is the reasoning-engine contract. Implementations return an
// error only for transport/provider failures; tool requests and truncation
// are expressed through the response itself.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}
