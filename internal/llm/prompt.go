package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a forecasting agent. Given a prediction-market question, research it ` +
	`with the available tools and then call finish with the probability (between 0 and 1) that the ` +
	`market resolves YES. Only use information available on or before the current date. Call exactly ` +
	`one tool per turn.`

// renderMessages serializes the example and the trajectory so far into a
// chat-completion message list. Each prior step becomes an assistant message
// carrying the tool call followed by a tool message carrying the observation.
func renderMessages(req Request) []chatMessage {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: renderExample(req)},
	}

	for _, step := range req.Steps {
		args, err := json.Marshal(step.Args)
		if err != nil {
			args = []byte("{}")
		}
		callID := fmt.Sprintf("call_%d", step.Index)
		messages = append(messages,
			chatMessage{
				Role:    "assistant",
				Content: step.Thought,
				ToolCalls: []toolCall{{
					ID:   callID,
					Type: "function",
					Function: functionCall{
						Name:      step.Tool,
						Arguments: string(args),
					},
				}},
			},
			chatMessage{
				Role:       "tool",
				ToolCallID: callID,
				Content:    step.Observation,
			},
		)
	}

	return messages
}

func renderExample(req Request) string {
	var b strings.Builder
	ex := req.Example

	fmt.Fprintf(&b, "Question: %s\n", ex.Question)
	fmt.Fprintf(&b, "Description: %s\n", ex.Description)
	fmt.Fprintf(&b, "Market creator: %s\n", ex.CreatorUsername)
	fmt.Fprintf(&b, "Current date: %s\n", ex.CurrentDate.Format("2006-01-02 15:04:05"))

	// An empty comment list is an absence of social signal, not an error.
	if len(ex.Comments) > 0 {
		b.WriteString("Comments:\n")
		for _, comment := range ex.Comments {
			fmt.Fprintf(&b, "- %s\n", comment)
		}
	}

	return b.String()
}
