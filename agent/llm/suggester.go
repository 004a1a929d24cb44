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

type suggestOutput struct {
	Suggestions []string `json:"suggestions"`
}

// Suggester proposes follow-up utterances from the recent conversation
// window. It may return fewer than requested; the caller pads from its
// fallback pool.
type Suggester struct {
	runner compose.Runnable[map[string]any, suggestOutput]
}

func NewSuggester(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Suggester, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: suggest prompt", contract.ErrPromptMissing)
	}
	runner, err := compileStructuredGraph[suggestOutput](ctx, chatModel, systemPrompt, "suggester.model_graph")
	if err != nil {
		return nil, fmt.Errorf("compile suggester graph: %w", err)
	}
	return &Suggester{runner: runner}, nil
}

func (s *Suggester) Suggest(ctx context.Context, turns []statex.Turn, dialogueState statex.DialogueState, countNeeded int) ([]string, error) {
	if countNeeded <= 0 {
		return nil, nil
	}
	out, err := s.runner.Invoke(ctx, map[string]any{
		"input": renderSuggestInput(turns, dialogueState, countNeeded),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: suggest: %v", contract.ErrModelInvoke, err)
	}
	suggestions := make([]string, 0, countNeeded)
	for _, s := range out.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == countNeeded {
			break
		}
	}
	return suggestions, nil
}

func renderSuggestInput(turns []statex.Turn, dialogueState statex.DialogueState, countNeeded int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "対話状態: %s\n", dialogueState)
	fmt.Fprintf(&b, "必要な件数: %d\n", countNeeded)
	b.WriteString("直近の会話:\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
	}
	return b.String()
}
