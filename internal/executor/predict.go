package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ksadov/backcast/internal/manifold"
	"github.com/ksadov/backcast/internal/models"
)

// Prediction is the agent's answer for one live, unresolved market.
type Prediction struct {
	MarketID          string          `json:"market_id"`
	Question          string          `json:"question"`
	URL               string          `json:"url,omitempty"`
	Answer            *float64        `json:"answer,omitempty"`
	MarketProbability *float64        `json:"market_probability,omitempty"`
	Failure           *models.Failure `json:"failure,omitempty"`
}

// PredictFromConfig answers the newest open binary markets on Manifold using
// the agent configured by the job config. Markets run sequentially; each one
// gets the same hard deadline as a backtest example. No trades are placed.
func PredictFromConfig(ctx context.Context, configPath string, limit int) ([]Prediction, error) {
	jobCfg, modelCfg, err := loadConfigs(configPath)
	if err != nil {
		return nil, err
	}

	factory, err := NewAgentRunnerFactory(jobCfg, modelCfg)
	if err != nil {
		return nil, err
	}

	client := manifold.NewClient()
	markets, err := client.OpenBinaryMarkets(ctx, limit, jobCfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("listing live markets: %w", err)
	}
	if len(markets) == 0 {
		return nil, nil
	}

	timeout := time.Duration(jobCfg.ExampleTimeoutSec * float64(time.Second))

	predictions := make([]Prediction, 0, len(markets))
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return predictions, err
		}

		comments, err := client.Comments(ctx, m.ID)
		if err != nil {
			slog.Warn("fetching comments failed, continuing without them",
				"market", m.ID, "error", err)
		}
		ex := manifold.ToExample(m, comments)

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		res := factory(ex).Run(runCtx, ex)
		cancel()

		predictions = append(predictions, Prediction{
			MarketID:          m.ID,
			Question:          m.Question,
			URL:               m.URL,
			Answer:            res.Answer,
			MarketProbability: m.Probability,
			Failure:           res.Failure,
		})
	}

	return predictions, nil
}
