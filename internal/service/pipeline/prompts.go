package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/loanpilot/internal/core"
)

const (
	maxQueryRunes    = 2000
	maxContextTokens = 1500
	draftMaxTokens   = 700
	intentMaxTokens  = 200
	reasonMaxTokens  = 400

	intentSystemPrompt = `You classify customer messages for a loan support desk. Reply with a single JSON object, no prose:
{"intent": "<loan_status|application|eligibility|repayment|complaint|other>", "urgency": "<low|medium|high>", "sla_risk": "<low|medium|high>", "requires_human_escalation": <true|false>}`

	correlateSystemPrompt = `You are a support analyst. Given a customer question, its classified intent, retrieved knowledge-base excerpts and conversation memory, write a short root-cause narrative (3-5 sentences) explaining what the customer needs and which facts answer it. Do not address the customer directly.`

	draftSystemPrompt = `You are a loan support assistant. Answer the customer's question using ONLY the provided knowledge-base excerpts. Cite the source file of every excerpt you rely on, like (source: faq.md). If the excerpts do not contain the answer, reply exactly with: I don't know.`
)

// Fixed terminal texts. These are the only messages a user ever sees besides
// a grounded answer; raw internal errors never leak.
const (
	declineInputMessage = "I'm sorry, but I can't help with that request. If you have a question about your loan, I'm happy to assist."

	declineOutputMessage = "I'm sorry, I can't provide that response. If you have a question about your loan, I'm happy to assist."

	outOfScopeMessage = "I couldn't find enough relevant information in our knowledge base to answer that confidently. Could you rephrase your question, or ask about loan applications, disbursement, eligibility or repayment?"

	escalationMessage = "I've escalated your request to a human support specialist. Someone from our team will get back to you shortly."

	generationFailedMessage = "I'm having trouble generating an answer right now. Please try again in a moment."
)

// promptBuilder assembles stage prompts under a token budget so a large
// retrieval set cannot blow the completion context.
type promptBuilder struct {
	enc *tiktoken.Tiktoken
}

func newPromptBuilder() *promptBuilder {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Tokenizer data unavailable, fall back to a rough estimate.
		enc = nil
	}
	return &promptBuilder{enc: enc}
}

func (b *promptBuilder) countTokens(text string) int {
	if b.enc == nil {
		return len(text) / 4
	}
	return len(b.enc.Encode(text, nil, nil))
}

// buildContext renders retrieval results newest-best-first until the token
// budget is spent.
func (b *promptBuilder) buildContext(results []core.RetrievalResult) string {
	var sb strings.Builder
	used := 0
	for _, res := range results {
		entry := fmt.Sprintf("[source: %s, chunk %d]\n%s\n\n", res.SourceFile, res.ChunkIndex, res.Text)
		cost := b.countTokens(entry)
		if used+cost > maxContextTokens {
			break
		}
		sb.WriteString(entry)
		used += cost
	}
	return strings.TrimSpace(sb.String())
}

func (b *promptBuilder) draftUserPrompt(query, reasoning string, results []core.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString("Knowledge base excerpts:\n")
	sb.WriteString(b.buildContext(results))
	if reasoning != "" {
		sb.WriteString("\n\nAnalyst notes:\n")
		sb.WriteString(reasoning)
	}
	sb.WriteString("\n\nCustomer question: ")
	sb.WriteString(query)
	return sb.String()
}

func (b *promptBuilder) correlateUserPrompt(s core.State) string {
	var sb strings.Builder
	sb.WriteString("Customer question: ")
	sb.WriteString(s.NormalizedQuery)

	if s.Intent != nil {
		sb.WriteString(fmt.Sprintf("\n\nIntent: %s (urgency %s, sla risk %s)",
			s.Intent.Intent, s.Intent.Urgency, s.Intent.SLARisk))
	}

	if len(s.Retrieval) > 0 {
		sb.WriteString("\n\nKnowledge base excerpts:\n")
		sb.WriteString(b.buildContext(s.Retrieval))
	} else {
		sb.WriteString("\n\nKnowledge base excerpts: none found.")
	}

	if s.Memory != nil && len(s.Memory.Working) > 0 {
		sb.WriteString("\n\nRecent conversation:\n")
		for i := len(s.Memory.Working) - 1; i >= 0; i-- {
			rec := s.Memory.Working[i]
			sb.WriteString(fmt.Sprintf("- %s: %s\n", rec.Metadata["role"], rec.Content))
		}
	}
	return sb.String()
}

// parseIntent tolerates markdown code fences around the JSON object, the
// usual failure mode of small models.
func parseIntent(raw string) (core.IntentResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result core.IntentResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return core.IntentResult{}, fmt.Errorf("failed to parse intent json: %w", err)
	}
	if result.Intent == "" {
		result.Intent = "other"
	}
	result.Urgency = normalizeLevel(result.Urgency, core.LevelMedium)
	result.SLARisk = normalizeLevel(result.SLARisk, core.LevelLow)
	return result, nil
}

func normalizeLevel(level, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case core.LevelLow:
		return core.LevelLow
	case core.LevelMedium:
		return core.LevelMedium
	case core.LevelHigh:
		return core.LevelHigh
	default:
		return fallback
	}
}
