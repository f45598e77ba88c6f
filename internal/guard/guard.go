// ABOUTME: Tool invocation guard run before every tool call
// ABOUTME: Blocks unverified callers and injects the trusted user id into tool arguments

package guard

import "maps"

// DefaultBlockMessage is returned to the agent loop when a gated tool is
// invoked without a verified caller.
const DefaultBlockMessage = "⚠️ 無法取得使用者資料！\n\n請確認您已正確登入系統。如果問題持續，請聯繫 IT 支援。"

// Decision is the guard's verdict for one tool call. When Allowed, Args is
// the argument map the tool must receive; when blocked, Reason carries the
// human-readable explanation and the tool must not run.
type Decision struct {
	Allowed bool
	Args    map[string]any
	Reason  string
}

// Policy is a stateless per-agent gate configured at registration time with
// the set of tool names that require a verified caller. An empty set gates
// every tool.
type Policy struct {
	gated        map[string]bool
	blockMessage string
}

// New builds a policy gating the named tools. With no names, all tools are
// gated.
func New(gatedTools ...string) Policy {
	p := Policy{blockMessage: DefaultBlockMessage}
	if len(gatedTools) > 0 {
		p.gated = make(map[string]bool, len(gatedTools))
		for _, name := range gatedTools {
			p.gated[name] = true
		}
	}
	return p
}

// WithBlockMessage returns a copy of the policy with a custom block reason.
func (p Policy) WithBlockMessage(msg string) Policy {
	p.blockMessage = msg
	return p
}

// Check decides whether toolName may run with args given the session state.
//
// Ungated tools pass through with their arguments untouched. For gated
// tools, an unverified session (is_registered absent or false) is blocked;
// otherwise args["user_id"] is overwritten with the session's trusted id.
// Tool implementations must never honor a caller-asserted identity, only
// the injected one. The input map is not mutated; the decision carries a
// copy.
func (p Policy) Check(toolName string, args map[string]any, state map[string]any) Decision {
	if p.gated != nil && !p.gated[toolName] {
		return Decision{Allowed: true, Args: args}
	}

	if registered, _ := state["is_registered"].(bool); !registered {
		return Decision{Reason: p.blockMessage}
	}

	mutated := make(map[string]any, len(args)+1)
	maps.Copy(mutated, args)
	mutated["user_id"] = state["user_id"]
	return Decision{Allowed: true, Args: mutated}
}

// BlockedResult is the structured payload returned into the agent's own
// reasoning loop in place of a tool result when the guard blocks a call.
// It is not an error; the agent reacts to it conversationally.
func BlockedResult(reason string) map[string]any {
	return map[string]any{
		"status":        "blocked",
		"error_message": reason,
	}
}
