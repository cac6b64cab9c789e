package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ksadov/backcast/internal/config"
)

const defaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// SearchResult is one entry from the search backend. Reachability of the
// link is not guaranteed.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// Searcher queries Google Custom Search. A cutoff date restricts results to
// pages indexed before it, which keeps backtests from seeing the future.
type Searcher struct {
	apiKey     string
	cx         string
	numResults int
	endpoint   string
	client     *resty.Client
}

// NewSearcher creates a search client from the job config, reading
// credentials from the configured environment variables.
func NewSearcher(cfg config.SearchConfig, apiKey, cx string) *Searcher {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Searcher{
		apiKey:     apiKey,
		cx:         cx,
		numResults: cfg.NumResults,
		endpoint:   defaultSearchEndpoint,
		client:     client,
	}
}

// SetEndpoint overrides the CSE endpoint, for tests.
func (s *Searcher) SetEndpoint(endpoint string) {
	s.endpoint = endpoint
}

// Results runs one query, restricted to pages indexed before cutoff when
// cutoff is non-zero.
func (s *Searcher) Results(ctx context.Context, query string, cutoff time.Time) ([]SearchResult, error) {
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetQueryParam("cx", s.cx).
		SetQueryParam("q", query).
		SetQueryParam("num", strconv.Itoa(s.numResults))
	if !cutoff.IsZero() {
		req.SetQueryParam("sort", "date:r::"+cutoff.Format("20060102"))
	}

	resp, err := req.Get(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("querying search backend: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search backend returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var parsed struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// SearchTool exposes the searcher as get_relevant_urls. The cutoff is fixed
// per example at registry construction time.
func SearchTool(searcher *Searcher, cutoff time.Time) Tool {
	return Tool{
		Name:        "get_relevant_urls",
		Description: "Search the web. Returns an ordered list of relevant URLs with titles and snippets.",
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
			query, err := stringArg("get_relevant_urls", args, "query")
			if err != nil {
				return "", err
			}
			results, err := searcher.Results(ctx, query, cutoff)
			if err != nil {
				return "", err
			}
			return formatSearchResults(results), nil
		},
	}
}

func formatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
