package contract

import (
	"context"

	statex "github.com/okaimono/shopping-agent/agent/state"
)

// ProviderClient is one searchable product source. Search returns records
// already normalized into the canonical schema; the engine treats any error
// as that provider's isolated failure.
type ProviderClient interface {
	Name() string
	Search(ctx context.Context, keyword string, limit int) ([]statex.ProductRecord, error)
}

// Summarizer condenses the top ranked results into a short natural-language
// digest. Implementations wrap failures in ErrSummarizationUnavailable so
// callers can degrade instead of aborting.
type Summarizer interface {
	Summarize(ctx context.Context, prefs statex.Preferences, products []statex.ProductRecord) (string, error)
}

// SuggestionModel proposes follow-up utterances for the user. It may return
// fewer than countNeeded; the generator tops up from a fixed pool.
type SuggestionModel interface {
	Suggest(ctx context.Context, turns []statex.Turn, dialogueState statex.DialogueState, countNeeded int) ([]string, error)
}

// ReviewLinker produces external review-site links for a confirmed product.
type ReviewLinker interface {
	Links(product statex.ProductRecord) []ReviewLink
}
