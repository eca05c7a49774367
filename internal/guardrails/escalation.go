package guardrails

import (
	"regexp"
	"strings"

	"github.com/sandevgo/loanpilot/internal/config"
	"github.com/sandevgo/loanpilot/internal/core"
)

// Escalator decides when a conversation must be handed to a human. The rule
// is deliberately conjunctive: the query has to be about the lending domain
// AND carry an escalation trigger. Urgent off-topic messages stay with the
// bot.
type Escalator struct {
	domain  []*regexp.Regexp
	human   []*regexp.Regexp
	urgency []*regexp.Regexp
}

func NewEscalator(cfg *config.GuardrailsConfig) *Escalator {
	return &Escalator{
		domain:  compileKeywords(cfg.DomainKeywords),
		human:   compileKeywords(cfg.HumanKeywords),
		urgency: compileKeywords(cfg.UrgencyKeywords),
	}
}

// InDomain reports whether the text mentions the lending domain at all.
func (e *Escalator) InDomain(text string) bool {
	return matchesAny(text, e.domain)
}

// RequiresHuman combines the keyword gate with the intent classifier's
// signals. Intent alone never escalates an off-topic message.
func (e *Escalator) RequiresHuman(query string, intent core.IntentResult) bool {
	if !e.InDomain(query) {
		return false
	}

	if intent.RequiresHumanEscalation {
		return true
	}
	if matchesAny(query, e.human) {
		return true
	}
	if matchesAny(query, e.urgency) {
		return true
	}
	if intent.Urgency == core.LevelHigh &&
		(intent.SLARisk == core.LevelHigh || intent.SLARisk == core.LevelMedium) {
		return true
	}
	return false
}

func compileKeywords(keywords []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		res = append(res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return res
}

func matchesAny(text string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
