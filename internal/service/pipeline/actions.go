package pipeline

import "github.com/sandevgo/loanpilot/internal/core"

// recommendActions attaches advisory follow-ups to a grounded answer based
// on the classified intent. There is no execute path, the actions are
// surfaced to the client as suggestions only.
func recommendActions(intent *core.IntentResult) []core.RecommendedAction {
	if intent == nil {
		return nil
	}

	switch intent.Intent {
	case "loan_status":
		return []core.RecommendedAction{
			{Action: "check_status", Description: "Check the latest status of your loan application"},
		}
	case "application":
		return []core.RecommendedAction{
			{Action: "document_checklist", Description: "Review the documents required for your application"},
		}
	case "eligibility":
		return []core.RecommendedAction{
			{Action: "eligibility_calculator", Description: "Estimate your eligibility with the loan calculator"},
		}
	case "repayment":
		return []core.RecommendedAction{
			{Action: "repayment_schedule", Description: "View your upcoming repayment schedule"},
		}
	default:
		return nil
	}
}
