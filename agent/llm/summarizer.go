package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

type summaryOutput struct {
	Summary string `json:"summary"`
}

// Summarizer turns the top ranked results into a short Japanese digest. Any
// failure surfaces as ErrSummarizationUnavailable so the caller can ship the
// list without a summary.
type Summarizer struct {
	runner compose.Runnable[map[string]any, summaryOutput]
}

func NewSummarizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Summarizer, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: summarize prompt", contract.ErrPromptMissing)
	}
	runner, err := compileStructuredGraph[summaryOutput](ctx, chatModel, systemPrompt, "summarizer.model_graph")
	if err != nil {
		return nil, fmt.Errorf("compile summarizer graph: %w", err)
	}
	return &Summarizer{runner: runner}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, prefs statex.Preferences, products []statex.ProductRecord) (string, error) {
	if len(products) == 0 {
		return "", fmt.Errorf("%w: no products to summarize", contract.ErrSummarizationUnavailable)
	}
	out, err := s.runner.Invoke(ctx, map[string]any{
		"input": renderSummaryInput(prefs, products),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrSummarizationUnavailable, err)
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", fmt.Errorf("%w: model returned empty summary", contract.ErrSummarizationUnavailable)
	}
	return summary, nil
}

func renderSummaryInput(prefs statex.Preferences, products []statex.ProductRecord) string {
	var b strings.Builder
	b.WriteString("条件:\n")
	if prefs.Category != "" {
		fmt.Fprintf(&b, "- カテゴリ: %s\n", prefs.Category)
	}
	if prefs.Color != "" {
		fmt.Fprintf(&b, "- 色: %s\n", prefs.Color)
	}
	if prefs.PriceMax != nil {
		fmt.Fprintf(&b, "- 上限価格: %d円\n", *prefs.PriceMax)
	}
	if prefs.PriceMin != nil {
		fmt.Fprintf(&b, "- 下限価格: %d円\n", *prefs.PriceMin)
	}
	if len(prefs.Features) > 0 {
		fmt.Fprintf(&b, "- 特徴: %s\n", strings.Join(prefs.Features, "、"))
	}
	b.WriteString("商品:\n")
	for i, p := range products {
		priceText := "価格不明"
		if p.Price != nil {
			priceText = fmt.Sprintf("%d円", *p.Price)
		}
		fmt.Fprintf(&b, "%d. %s (%s, %s)\n", i+1, p.Name, priceText, p.Shop)
	}
	return b.String()
}
