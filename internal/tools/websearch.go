package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WebSearchTool is the unified alternative to get_relevant_urls +
// retrieve_web_content: one query returns search results with the page text
// already inlined, saving the agent a turn per page.
func WebSearchTool(searcher *Searcher, retriever *Retriever, cutoff time.Time) Tool {
	return Tool{
		Name:        "web_search",
		Description: "Search the web and return the matching pages' readable text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query.",
				},
			},
			"required": []string{"query"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := stringArg("web_search", args, "query")
			if err != nil {
				return "", err
			}
			results, err := searcher.Results(ctx, query, cutoff)
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "No results.", nil
			}

			urls := make([]string, len(results))
			for i, r := range results {
				urls[i] = r.Link
			}
			contents := retriever.Fetch(ctx, urls)

			var b strings.Builder
			for i, r := range results {
				fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n%s\n\n", i+1, r.Title, r.Link, r.Snippet, contents[i])
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}
