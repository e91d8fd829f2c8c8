package tools

// ToolResult carries a tool's outcome in two renditions: ForLLM goes back
// into the conversation, ForUser (when set) is relayed to the chat channel.
type ToolResult struct {
	ForLLM  string
	ForUser string
	Silent  bool // user already saw the effect, don't relay ForUser
	Async   bool // work continues in background, completion arrives later
	IsError bool
	Err     error
}

// NewToolResult builds a plain success result shown to both the LLM and,
// via ForUser, the user.
func NewToolResult(content string) *ToolResult {
	return &ToolResult{ForLLM: content}
}

// SilentResult builds a success result that is fed to the LLM only.
func SilentResult(content string) *ToolResult {
	return &ToolResult{ForLLM: content, Silent: true}
}

// ErrorResult builds a failure result. Tool failures are ordinary content
// from the loop's point of view: the LLM sees the message and decides what
// to do next.
func ErrorResult(msg string) *ToolResult {
	return &ToolResult{ForLLM: msg, IsError: true}
}

// AsyncResult builds an acknowledgement for work that continues in the
// background.
func AsyncResult(msg string) *ToolResult {
	return &ToolResult{ForLLM: msg, Async: true}
}

func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	return r
}

// ContentForLLM returns what should be fed back to the model, falling back
// to the wrapped error when a tool produced no text.
func (r *ToolResult) ContentForLLM() string {
	if r.ForLLM != "" {
		return r.ForLLM
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}
