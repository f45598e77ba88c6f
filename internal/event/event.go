// ABOUTME: Raw and canonical event types for agent turn execution
// ABOUTME: Raw events are shape-variable producer output; canonical events are the normalized form

package event

// Call describes a tool invocation as exposed by a producer.
// Producers disagree on which fields they populate; all are optional.
type Call struct {
	ID   string
	Name string
	Args any
}

// Result describes a tool result as exposed by a producer.
// The payload may arrive under Response or Result depending on the producer.
type Result struct {
	ID       string
	Name     string
	Response any
	Result   any
}

// Part is one fragment of nested event content: free text, an embedded
// tool call, or an embedded tool result. Any subset may be set.
type Part struct {
	Text             string
	FunctionCall     *Call
	FunctionResponse *Result
}

// Content holds the nested fragment list some producers attach to an event.
type Content struct {
	Parts []Part
}

// Actions is the action-wrapper shape: a container holding call descriptors.
type Actions struct {
	ToolCalls []Call
}

// Raw is one low-level execution event for a turn. Each field is an
// independent shape through which tool-call or tool-result information may
// surface. Any subset may be populated, including none and including
// several at once; the shapes are not mutually exclusive.
type Raw struct {
	FunctionCalls     []Call
	Content           *Content
	Actions           *Actions
	ToolCalls         []Call
	FunctionResponses []Result
	ToolResults       []Result
}

// Canonical is the normalized sub-event variant: ToolCall, ToolResult, or
// TextDelta. Values are produced only by Normalize.
type Canonical interface {
	canonical()
}

// ToolCall is a normalized tool invocation.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult is a normalized tool result with its payload taken as-is.
type ToolResult struct {
	Name   string
	Result any
}

// TextDelta is one fragment of agent response text.
type TextDelta struct {
	Text string
}

func (ToolCall) canonical()   {}
func (ToolResult) canonical() {}
func (TextDelta) canonical()  {}
