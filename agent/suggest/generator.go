// Package suggest builds the three follow-up prompts attached to every agent
// reply outside the terminal dialogue state.
package suggest

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

const suggestionCount = 3

const (
	budgetPrompt   = "ご予算を教えてください（例: 5000円以下）"
	featuresPrompt = "欲しい機能や特徴を教えてください（例: 軽量、UVカット）"
)

// fallbackPool pads the suggestion list when the generative capability is
// missing or comes up short.
var fallbackPool = []string{
	"人気の商品を見せて",
	"価格の安い順に並べて",
	"評価の高い商品を探して",
	"お気に入りを比較して",
	"別のカテゴリを探す",
}

// Generator fills deterministic slot prompts first and tops up with the
// generative capability, which may be nil.
type Generator struct {
	model         contract.SuggestionModel
	historyWindow int
}

type Option func(*Generator)

func WithModel(m contract.SuggestionModel) Option {
	return func(g *Generator) { g.model = m }
}

func WithHistoryWindow(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.historyWindow = n
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{historyWindow: 6}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate returns exactly three distinct suggestions, or nil when the state
// does not emit suggestions. Duplicates are compared case-insensitively with
// whitespace collapsed.
func (g *Generator) Generate(ctx context.Context, session *statex.Session) []string {
	if session == nil || !session.State.EmitsSuggestions() {
		return nil
	}

	picked := make([]string, 0, suggestionCount)
	seen := make(map[string]struct{}, suggestionCount)
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return false
		}
		key := normalize(s)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		picked = append(picked, s)
		return true
	}

	// Deterministic slot prompts, highest priority first, at most two.
	if session.Prefs.PriceMin == nil && session.Prefs.PriceMax == nil {
		add(budgetPrompt)
	}
	if len(session.Prefs.Features) == 0 {
		add(featuresPrompt)
	}

	if need := suggestionCount - len(picked); need > 0 && g.model != nil {
		generated, err := g.model.Suggest(ctx, session.RecentHistory(g.historyWindow), session.State, need)
		if err != nil {
			log.Warn().Err(err).Msg("generative suggestions unavailable")
		}
		for _, s := range generated {
			if len(picked) >= suggestionCount {
				break
			}
			add(s)
		}
	}

	for _, s := range fallbackPool {
		if len(picked) >= suggestionCount {
			break
		}
		add(s)
	}
	return picked
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
