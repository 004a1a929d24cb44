package contract

import (
	statex "github.com/okaimono/shopping-agent/agent/state"
)

// SearchOutcome is the settled result of one fan-out: every registered
// provider appears exactly once, either in ResultsByProvider or in Failures.
type SearchOutcome struct {
	ResultsByProvider map[string][]statex.ProductRecord `json:"results_by_provider"`
	Failures          []*ProviderError                  `json:"-"`
}

// Partial reports whether at least one provider failed while at least one
// succeeded.
func (o SearchOutcome) Partial() bool {
	return len(o.Failures) > 0 && len(o.ResultsByProvider) > 0
}

// TotalFailure reports whether no provider returned results.
func (o SearchOutcome) TotalFailure() bool {
	return len(o.ResultsByProvider) == 0
}

// Reply is what one handled user turn produces.
type Reply struct {
	SessionID   string                 `json:"session_id"`
	AgentText   string                 `json:"agent_text"`
	Suggestions []string               `json:"suggestions,omitempty"`
	Products    []statex.ProductRecord `json:"products,omitempty"`
	ReviewLinks []ReviewLink           `json:"review_links,omitempty"`
	State       statex.DialogueState   `json:"state"`
}

// ReviewLink points at one external review site's search page for a product.
type ReviewLink struct {
	Site string `json:"site"`
	URL  string `json:"url"`
}
