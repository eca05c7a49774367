package guardrails

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sandevgo/loanpilot/internal/config"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

// Checker runs moderation against user input and model output. The remote
// moderator is advisory: when it is unreachable the checker fails open and
// reports the text as safe, because blocking every customer on a moderation
// outage is worse than letting the odd bad message through.
type Checker struct {
	moderator core.Moderator
	noAnswer  []*regexp.Regexp
	threshold float64
}

func NewChecker(moderator core.Moderator, cfg *config.GuardrailsConfig) (*Checker, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.NoAnswerPatterns))
	for _, p := range cfg.NoAnswerPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid no-answer pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &Checker{
		moderator: moderator,
		noAnswer:  patterns,
		threshold: cfg.ConfidenceThreshold,
	}, nil
}

// CheckInput moderates a user message before it reaches the pipeline.
func (c *Checker) CheckInput(ctx context.Context, text string) core.SafetyResult {
	return c.moderate(ctx, text)
}

// CheckOutput moderates a draft answer and additionally detects structured
// non-answers, which the gate turns into an out-of-scope response.
func (c *Checker) CheckOutput(ctx context.Context, text string) core.SafetyResult {
	result := c.moderate(ctx, text)
	result.NoAnswer = c.isNoAnswer(text)
	return result
}

// ConfidentEnough reports whether a safe verdict clears the confidence bar.
func (c *Checker) ConfidentEnough(result core.SafetyResult) bool {
	return result.Safe && result.Confidence >= c.threshold
}

func (c *Checker) moderate(ctx context.Context, text string) core.SafetyResult {
	if c.moderator == nil {
		return core.SafetyResult{Safe: true, Confidence: 1.0, Reason: "moderation disabled"}
	}

	verdict, err := c.moderator.Classify(ctx, text)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("moderation unavailable, failing open")
		return core.SafetyResult{Safe: true, Confidence: 1.0, Reason: "moderation unavailable"}
	}

	score := maxScore(verdict.Scores)
	if verdict.Flagged {
		return core.SafetyResult{
			Safe:       false,
			Confidence: score,
			Reason:     "flagged: " + strings.Join(verdict.Categories, ", "),
		}
	}
	return core.SafetyResult{Safe: true, Confidence: 1.0 - score}
}

func (c *Checker) isNoAnswer(text string) bool {
	for _, re := range c.noAnswer {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func maxScore(scores map[string]float64) float64 {
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	return max
}
