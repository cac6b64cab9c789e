// Package tools exposes the fixed set of external capabilities available to
// the agent: web search, page retrieval, an optional python interpreter, and
// the structural finish tool.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ksadov/backcast/internal/llm"
)

// FinishToolName is the sentinel tool recognized structurally by the agent
// loop; it is never executed as an external call.
const FinishToolName = "finish"

// ArgError reports tool arguments that could not be coerced to the declared
// schema. The agent seals the trajectory on it instead of producing an
// observation.
type ArgError struct {
	Tool string
	Arg  string
	Err  error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("tool %s argument %q: %v", e.Tool, e.Arg, e.Err)
}

func (e *ArgError) Unwrap() error { return e.Err }

// Tool is one named capability with a declared argument schema. Run is nil
// for the finish sentinel.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Registry is the closed set of tools for one evaluation run. It is built
// once at startup and read-only afterwards, so it is safe for concurrent use
// by all workers.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools plus the finish
// sentinel.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools)+1)}
	for _, t := range tools {
		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
	}
	finish := finishTool()
	r.order = append(r.order, finish.Name)
	r.tools[finish.Name] = finish
	return r
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool declarations for the completion backend, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

func finishTool() Tool {
	return Tool{
		Name:        FinishToolName,
		Description: "Commit to a final answer: the probability (between 0 and 1) that the market resolves YES.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":        "number",
					"description": "Probability that the market resolves YES.",
				},
			},
			"required": []string{"answer"},
		},
	}
}

// FinishAnswer coerces the finish tool's answer argument to a float.
func FinishAnswer(args map[string]any) (float64, error) {
	raw, ok := args["answer"]
	if !ok {
		return 0, &ArgError{Tool: FinishToolName, Arg: "answer", Err: fmt.Errorf("missing")}
	}
	return numberArg(FinishToolName, "answer", raw)
}

// stringArg coerces a required string argument.
func stringArg(tool string, args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok {
		return "", &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("missing")}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("expected string, got %T", raw)}
	}
	if s == "" {
		return "", &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("empty")}
	}
	return s, nil
}

// numberArg coerces a numeric argument. JSON numbers arrive as float64;
// numeric strings are accepted as simple type normalization.
func numberArg(tool, name string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &ArgError{Tool: tool, Arg: name, Err: err}
		}
		return f, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
			return 0, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("not a number: %q", v)}
		}
		return f, nil
	default:
		return 0, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("expected number, got %T", raw)}
	}
}

// urlListArg coerces a list-or-mapping of URL strings. A single string
// becomes a one-element list; a mapping contributes its values in sorted key
// order. Anything else is a schema violation.
func urlListArg(tool string, args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok {
		return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("missing")}
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("empty")}
		}
		return []string{v}, nil
	case []any:
		urls := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("element %d: expected string, got %T", i, item)}
			}
			urls = append(urls, s)
		}
		if len(urls) == 0 {
			return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("empty")}
		}
		return urls, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		urls := make([]string, 0, len(keys))
		for _, k := range keys {
			s, ok := v[k].(string)
			if !ok {
				return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("value for %q: expected string, got %T", k, v[k])}
			}
			urls = append(urls, s)
		}
		if len(urls) == 0 {
			return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("empty")}
		}
		return urls, nil
	default:
		return nil, &ArgError{Tool: tool, Arg: name, Err: fmt.Errorf("expected list or mapping of URLs, got %T", raw)}
	}
}
