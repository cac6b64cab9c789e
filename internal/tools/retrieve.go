package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ksadov/backcast/internal/util"
)

// Retriever fetches pages and extracts their readable text. Each URL gets
// its own timeout so one slow page cannot dominate a turn, and each failure
// becomes a per-URL placeholder rather than an error for the whole call.
type Retriever struct {
	perURLTimeout time.Duration
	maxChars      int
	client        *resty.Client
}

// NewRetriever creates a retriever. perURLTimeout must be strictly smaller
// than the harness's per-example timeout; the config layer enforces that.
func NewRetriever(perURLTimeout time.Duration, maxChars int) *Retriever {
	client := resty.New()
	client.SetHeader("User-Agent", "backcast/1.0")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Retriever{
		perURLTimeout: perURLTimeout,
		maxChars:      maxChars,
		client:        client,
	}
}

// Fetch retrieves each URL in order. The returned slice is parallel to urls:
// extracted text on success, an error placeholder on failure.
func (r *Retriever) Fetch(ctx context.Context, urls []string) []string {
	contents := make([]string, len(urls))
	for i, url := range urls {
		text, err := r.fetchOne(ctx, url)
		if err != nil {
			contents[i] = fmt.Sprintf("fetch failed: %v", err)
			continue
		}
		contents[i] = text
	}
	return contents
}

func (r *Retriever) fetchOne(ctx context.Context, url string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.perURLTimeout)
	defer cancel()

	resp, err := r.client.R().SetContext(fetchCtx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode())
	}

	text := util.HTMLToText(string(resp.Body()))
	return util.Truncate(text, r.maxChars), nil
}

// RetrieveTool exposes the retriever as retrieve_web_content.
func RetrieveTool(retriever *Retriever) Tool {
	return Tool{
		Name:        "retrieve_web_content",
		Description: "Fetch one or more URLs and return their readable text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"urls": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "URLs to fetch.",
				},
			},
			"required": []string{"urls"},
		},
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			urls, err := urlListArg("retrieve_web_content", args, "urls")
			if err != nil {
				return "", err
			}
			contents := retriever.Fetch(ctx, urls)

			var b strings.Builder
			for i, url := range urls {
				fmt.Fprintf(&b, "=== %s ===\n%s\n", url, contents[i])
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}
