package tools

import "context"

// Tool is the interface that all tools must implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

// ContextualTool is an optional interface for tools that need to know where
// the current message came from (channel, chatID, sessionKey).
type ContextualTool interface {
	Tool
	SetContext(channel, chatID, sessionKey string)
}

// AsyncCallback is invoked from a background goroutine when an async tool
// finishes its work. The ctx allows the callback to bail out during shutdown.
type AsyncCallback func(ctx context.Context, result *ToolResult)

// AsyncTool is an optional interface for tools whose Execute returns an
// AsyncResult immediately and reports completion through the callback.
type AsyncTool interface {
	Tool
	SetCallback(cb AsyncCallback)
}

// ProgressCallback receives incremental output while a tool is running.
type ProgressCallback func(content string)

// ProgressTool is an optional interface for tools that stream progress.
type ProgressTool interface {
	Tool
	SetProgressCallback(cb ProgressCallback)
}

func ToolToSchema(tool Tool) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"parameters":  tool.Parameters(),
		},
	}
}
