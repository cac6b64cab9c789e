package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ksadov/backcast/internal/sandbox"
)

// PythonTool exposes eval_python, backed by a sandboxed interpreter with a
// hard time limit. Execution failures come back as observations so the agent
// can revise its code.
func PythonTool(runner sandbox.Runner) Tool {
	return Tool{
		Name:        "eval_python",
		Description: "Execute a Python snippet and return its stdout and stderr. No network access, short time limit.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source to execute.",
				},
			},
			"required": []string{"code"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := stringArg("eval_python", args, "code")
			if err != nil {
				return "", err
			}
			out, err := runner.Run(ctx, code)
			if err != nil {
				return "", err
			}

			var b strings.Builder
			if out.Stdout != "" {
				fmt.Fprintf(&b, "stdout:\n%s\n", out.Stdout)
			}
			if out.Stderr != "" {
				fmt.Fprintf(&b, "stderr:\n%s\n", out.Stderr)
			}
			if out.ExitCode != 0 {
				fmt.Fprintf(&b, "exit code: %d\n", out.ExitCode)
			}
			if b.Len() == 0 {
				return "(no output)", nil
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}
