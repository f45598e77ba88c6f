// ABOUTME: Normalizer converts shape-variable raw events into canonical sub-events
// ABOUTME: One adapter per producer shape, applied in a fixed priority order

package event

import "fmt"

// adapter extracts zero or more canonical sub-events from one shape of a raw event.
type adapter func(*Raw) []Canonical

// adapters run in shape-priority order. The order is authoritative for
// sub-event ordering within a single raw event.
var adapters = []adapter{
	fromFunctionCalls,
	fromContentCalls,
	fromActionCalls,
	fromToolCalls,
	fromFunctionResponses,
	fromContentResults,
	fromToolResults,
	fromText,
}

// Normalize converts one raw event into its canonical sub-events.
//
// Every shape is probed independently: a call exposed through two shapes on
// the same raw event yields two ToolCall sub-events. There is deliberately no
// cross-shape deduplication; downstream consumers see exactly what the
// producer surfaced, once per shape. Missing fields never fail.
func Normalize(raw *Raw) []Canonical {
	if raw == nil {
		return nil
	}
	var out []Canonical
	for _, extract := range adapters {
		out = append(out, extract(raw)...)
	}
	return out
}

func fromFunctionCalls(raw *Raw) []Canonical {
	return callEvents(raw.FunctionCalls)
}

func fromContentCalls(raw *Raw) []Canonical {
	if raw.Content == nil {
		return nil
	}
	var out []Canonical
	for _, part := range raw.Content.Parts {
		if part.FunctionCall != nil {
			out = append(out, normalizeCall(*part.FunctionCall))
		}
	}
	return out
}

func fromActionCalls(raw *Raw) []Canonical {
	if raw.Actions == nil {
		return nil
	}
	return callEvents(raw.Actions.ToolCalls)
}

func fromToolCalls(raw *Raw) []Canonical {
	return callEvents(raw.ToolCalls)
}

func fromFunctionResponses(raw *Raw) []Canonical {
	return resultEvents(raw.FunctionResponses)
}

func fromContentResults(raw *Raw) []Canonical {
	if raw.Content == nil {
		return nil
	}
	var out []Canonical
	for _, part := range raw.Content.Parts {
		if part.FunctionResponse != nil {
			out = append(out, normalizeResult(*part.FunctionResponse))
		}
	}
	return out
}

func fromToolResults(raw *Raw) []Canonical {
	return resultEvents(raw.ToolResults)
}

func fromText(raw *Raw) []Canonical {
	if raw.Content == nil {
		return nil
	}
	var out []Canonical
	for _, part := range raw.Content.Parts {
		if part.Text != "" {
			out = append(out, TextDelta{Text: part.Text})
		}
	}
	return out
}

func callEvents(calls []Call) []Canonical {
	var out []Canonical
	for _, c := range calls {
		out = append(out, normalizeCall(c))
	}
	return out
}

func resultEvents(results []Result) []Canonical {
	var out []Canonical
	for _, r := range results {
		out = append(out, normalizeResult(r))
	}
	return out
}

func normalizeCall(c Call) ToolCall {
	return ToolCall{
		Name: callName(c.Name, c.ID),
		Args: coerceArgs(c.Args),
	}
}

func normalizeResult(r Result) ToolResult {
	payload := r.Response
	if payload == nil {
		payload = r.Result
	}
	return ToolResult{
		Name:   callName(r.Name, r.ID),
		Result: payload,
	}
}

// callName prefers the name field, falls back to the identifier field.
func callName(name, id string) string {
	if name != "" {
		return name
	}
	if id != "" {
		return id
	}
	return "unknown"
}

// coerceArgs forces tool arguments into a key-value mapping. Anything not
// already mapping-shaped is wrapped as {"raw": stringified-value}.
func coerceArgs(v any) map[string]any {
	switch args := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if args == nil {
			return map[string]any{}
		}
		return args
	case map[string]string:
		out := make(map[string]any, len(args))
		for k, val := range args {
			out[k] = val
		}
		return out
	default:
		return map[string]any{"raw": fmt.Sprintf("%v", v)}
	}
}
