// Package manifold is a read-only client for the Manifold Markets API, used
// to turn live unresolved markets into forecasting examples.
package manifold

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ksadov/backcast/internal/config"
	"github.com/ksadov/backcast/internal/models"
)

const defaultBaseURL = "https://api.manifold.markets/v0"

// OutcomeTypeBinary marks yes/no markets, the only kind the agent answers.
const OutcomeTypeBinary = "BINARY"

// Market is a Manifold market, lite or full. Full markets additionally carry
// the plain-text description.
type Market struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	URL               string   `json:"url"`
	CreatorUsername   string   `json:"creatorUsername"`
	CreatedTime       int64    `json:"createdTime"` // epoch millis
	CloseTime         *int64   `json:"closeTime,omitempty"`
	OutcomeType       string   `json:"outcomeType"`
	Probability       *float64 `json:"probability,omitempty"`
	IsResolved        bool     `json:"isResolved"`
	Resolution        string   `json:"resolution,omitempty"`
	TextDescription   string   `json:"textDescription,omitempty"`
	GroupSlugs        []string `json:"groupSlugs,omitempty"`
	UniqueBettorCount int      `json:"uniqueBettorCount"`
	TotalLiquidity    float64  `json:"totalLiquidity"`
}

// Comment is one market comment. Only the plain-text body is kept.
type Comment struct {
	ID           string `json:"id"`
	UserUsername string `json:"userUsername"`
	Text         string `json:"text,omitempty"`
}

// Client talks to the Manifold API. No credentials are needed for reads.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a read-only Manifold client.
func NewClient() *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "application/json")

	return &Client{
		baseURL: defaultBaseURL,
		http:    client,
	}
}

// SetBaseURL overrides the API base URL, for tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// NewestMarkets lists the most recently created markets in lite form.
func (c *Client) NewestMarkets(ctx context.Context, limit int) ([]Market, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sort", "created-time").
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(c.baseURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("listing markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("manifold returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var markets []Market
	if err := json.Unmarshal(resp.Body(), &markets); err != nil {
		return nil, fmt.Errorf("decoding market list: %w", err)
	}
	return markets, nil
}

// Market fetches one market in full form, including its description.
func (c *Client) Market(ctx context.Context, id string) (*Market, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.baseURL + "/market/" + id)
	if err != nil {
		return nil, fmt.Errorf("fetching market %s: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("manifold returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var market Market
	if err := json.Unmarshal(resp.Body(), &market); err != nil {
		return nil, fmt.Errorf("decoding market %s: %w", id, err)
	}
	return &market, nil
}

// Comments fetches the comments on a market. Comments without a plain-text
// body are dropped.
func (c *Client) Comments(ctx context.Context, contractID string) ([]Comment, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("contractId", contractID).
		Get(c.baseURL + "/comments")
	if err != nil {
		return nil, fmt.Errorf("fetching comments for %s: %w", contractID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("manifold returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var all []Comment
	if err := json.Unmarshal(resp.Body(), &all); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}

	comments := all[:0]
	for _, cm := range all {
		if strings.TrimSpace(cm.Text) != "" {
			comments = append(comments, cm)
		}
	}
	return comments, nil
}

// OpenBinaryMarkets lists the newest markets and returns the full form of
// every unresolved binary one, applying the group filters.
func (c *Client) OpenBinaryMarkets(ctx context.Context, limit int, filters config.MarketFilters) ([]Market, error) {
	lite, err := c.NewestMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}

	var markets []Market
	for _, m := range lite {
		if m.IsResolved || m.OutcomeType != OutcomeTypeBinary {
			continue
		}
		full, err := c.Market(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if excluded(full.GroupSlugs, filters.ExcludeGroups) {
			continue
		}
		markets = append(markets, *full)
	}
	return markets, nil
}

func excluded(slugs, excludeGroups []string) bool {
	for _, slug := range slugs {
		if slices.Contains(excludeGroups, slug) {
			return true
		}
	}
	return false
}

// ToExample converts a live market and its comments into an example the
// agent can answer. The reference date is now; the outcome stays unknown.
func ToExample(m Market, comments []Comment) models.Example {
	texts := make([]string, 0, len(comments))
	for _, cm := range comments {
		texts = append(texts, cm.Text)
	}

	return models.Example{
		ID:                m.ID,
		Question:          m.Question,
		Description:       m.TextDescription,
		CreatorUsername:   m.CreatorUsername,
		Comments:          texts,
		CurrentDate:       time.Now().UTC(),
		Outcome:           models.OutcomeUnknown,
		MarketProbability: m.Probability,
		GroupSlugs:        m.GroupSlugs,
		CreatedTime:       m.CreatedTime,
	}
}
