package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/summarize.txt
	summarizeRaw string

	//go:embed template/suggest.txt
	suggestRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Summarize string
	Suggest   string
}

// LoadPromptSet returns trimmed prompt strings. Safe to call concurrently;
// the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Summarize: strings.TrimSpace(summarizeRaw),
		Suggest:   strings.TrimSpace(suggestRaw),
	}
}
