package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sandevgo/loanpilot/internal/core"
)

// ModerationClient calls the OpenAI moderation endpoint. It implements
// core.Moderator.
type ModerationClient struct {
	baseProvider
}

func NewModerationClient(apiKey string) *ModerationClient {
	return &ModerationClient{
		baseProvider: newBaseProvider("https://api.openai.com", apiKey, "omni-moderation-latest"),
	}
}

func (m *ModerationClient) Classify(ctx context.Context, text string) (core.Moderation, error) {
	payload := map[string]any{
		"model": m.model,
		"input": text,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + m.apiKey,
	}

	resp, err := m.doRequest(ctx, http.MethodPost, "/v1/moderations", payload, headers)
	if err != nil {
		return core.Moderation{}, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Moderation{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Moderation{}, fmt.Errorf("%w: http %d: %s", core.ErrBackendUnavailable, resp.StatusCode, string(data))
	}

	var result struct {
		Results []struct {
			Flagged        bool               `json:"flagged"`
			Categories     map[string]bool    `json:"categories"`
			CategoryScores map[string]float64 `json:"category_scores"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Moderation{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Results) == 0 {
		return core.Moderation{}, fmt.Errorf("empty moderation results")
	}

	r := result.Results[0]
	mod := core.Moderation{
		Flagged: r.Flagged,
		Scores:  r.CategoryScores,
	}
	for cat, hit := range r.Categories {
		if hit {
			mod.Categories = append(mod.Categories, cat)
		}
	}
	return mod, nil
}
