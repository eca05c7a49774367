package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type GuardrailsConfig struct {
	// Below this moderation confidence the output gate treats the draft as
	// unsafe.
	ConfidenceThreshold float64 `env:"MODERATION_CONFIDENCE_THRESHOLD" envDefault:"0.7"`

	// Regex patterns marking a structured non-answer ("I don't know").
	NoAnswerPatterns []string `env:"NO_ANSWER_PATTERNS" envSeparator:"|" envDefault:"\\bI don't know\\b|\\bI do not know\\b|\\bno_answer\\b|\\bN/A\\b|\\[no_answer\\]|\\[escalate\\]"`

	// Keyword sets driving the escalation classifier. Matching is
	// case-insensitive on word boundaries.
	DomainKeywords  []string `env:"ESCALATION_DOMAIN_KEYWORDS" envSeparator:"," envDefault:"loan,loans,application,disbursement,disbursal,eligibility,emi,interest,repayment,sanction,collateral,co-applicant,moratorium"`
	HumanKeywords   []string `env:"ESCALATION_HUMAN_KEYWORDS" envSeparator:"," envDefault:"speak to,talk to,agent,human,representative,escalate,call me,contact support"`
	UrgencyKeywords []string `env:"ESCALATION_URGENCY_KEYWORDS" envSeparator:"," envDefault:"urgent,urgently,asap,immediately,stuck,failed,blocked,delayed,not working,emergency"`

	// Working memory records kept per session.
	WorkingMemoryWindow int `env:"WORKING_MEMORY_WINDOW" envDefault:"20"`
}

func NewGuardrailsConfig(ctx context.Context) *GuardrailsConfig {
	c := &GuardrailsConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse guardrails config")
	}
	return c
}
