package retrieval

import (
	"context"
	"strings"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

const expandSystemPrompt = `You rewrite customer support questions into short keyword-rich search queries for a loan knowledge base. Reply with the rewritten query only, no explanation.`

// Retriever wraps the index with the recall gate: results farther than
// MaxDistance are dropped before anyone downstream sees them. Results
// without a reported distance pass through, the backend is trusted there.
type Retriever struct {
	index       *Index
	k           int
	maxDistance float64
	expander    core.Completer    // optional, enables one retry with a rewritten query
	inDomain    func(string) bool // optional, gates the retry to on-topic questions
}

func NewRetriever(index *Index, k int, maxDistance float64) *Retriever {
	return &Retriever{
		index:       index,
		k:           k,
		maxDistance: maxDistance,
	}
}

// WithQueryExpansion enables a single retry: when an in-domain query recalls
// nothing, the completer rewrites it and the index is searched once more.
func (r *Retriever) WithQueryExpansion(expander core.Completer, inDomain func(string) bool) *Retriever {
	r.expander = expander
	r.inDomain = inDomain
	return r
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]core.RetrievalResult, error) {
	logger := log.FromCtx(ctx)

	results, err := r.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	if r.expander == nil || r.inDomain == nil || !r.inDomain(query) {
		return nil, nil
	}

	expanded, err := r.expander.Complete(ctx, expandSystemPrompt, query, 64)
	if err != nil || strings.TrimSpace(expanded) == "" {
		logger.Debug().Err(err).Msg("query expansion failed, keeping empty result")
		return nil, nil
	}

	logger.Debug().Str("expanded", expanded).Msg("retrying retrieval with expanded query")
	return r.search(ctx, expanded)
}

func (r *Retriever) search(ctx context.Context, query string) ([]core.RetrievalResult, error) {
	results, err := r.index.Search(ctx, query, r.k)
	if err != nil {
		return nil, err
	}
	return FilterByDistance(results, r.maxDistance), nil
}

// FilterByDistance keeps results whose distance is at most max. A nil
// distance passes.
func FilterByDistance(results []core.RetrievalResult, max float64) []core.RetrievalResult {
	kept := results[:0:0]
	for _, res := range results {
		if res.Distance == nil || *res.Distance <= max {
			kept = append(kept, res)
		}
	}
	return kept
}

// BestDistance returns the smallest reported distance, or nil when no result
// carries one.
func BestDistance(results []core.RetrievalResult) *float64 {
	var best *float64
	for _, res := range results {
		if res.Distance == nil {
			continue
		}
		if best == nil || *res.Distance < *best {
			d := *res.Distance
			best = &d
		}
	}
	return best
}
