package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/contract"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

const (
	defaultProviderTimeout = 5 * time.Second
	defaultResultLimit     = 20
)

// Engine runs one concurrent search per registered provider. Failures are
// recorded per provider and never abort the fan-out; the engine returns only
// after every provider has settled.
type Engine struct {
	registry *Registry
	timeout  time.Duration
	limit    int
}

type EngineOption func(*Engine)

func WithProviderTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithResultLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		timeout:  defaultProviderTimeout,
		limit:    defaultResultLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type settled struct {
	provider string
	records  []statex.ProductRecord
	err      *contract.ProviderError
}

// Search builds one space-joined query from the preference tokens and issues
// it to every provider concurrently, each under its own timeout. The outcome
// lists every provider exactly once, as a result set or a failure.
func (e *Engine) Search(ctx context.Context, prefs statex.Preferences) (contract.SearchOutcome, error) {
	outcome := contract.SearchOutcome{
		ResultsByProvider: make(map[string][]statex.ProductRecord),
	}
	tokens := prefs.QueryTokens()
	if len(tokens) == 0 {
		return outcome, nil
	}
	keyword := strings.Join(tokens, " ")

	names := e.registry.Order()
	results := make(chan settled, len(names))
	pending := make(map[string]struct{}, len(names))
	for _, name := range names {
		client, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		pending[name] = struct{}{}
		go func(name string, client contract.ProviderClient) {
			// The channel is buffered for every provider, so a late
			// delivery after the barrier gave up never blocks.
			results <- e.callProvider(ctx, name, client, keyword)
		}(name, client)
	}

	for len(pending) > 0 {
		select {
		case s := <-results:
			delete(pending, s.provider)
			if s.err != nil {
				outcome.Failures = append(outcome.Failures, s.err)
				log.Warn().
					Str("provider", s.err.Provider).
					Str("kind", string(s.err.Kind)).
					Err(s.err.Err).
					Msg("provider search failed")
				continue
			}
			outcome.ResultsByProvider[s.provider] = s.records
		case <-ctx.Done():
			// The caller's deadline stops the wait even for clients that
			// ignore their context; whatever is still pending settles as a
			// timeout failure.
			for name := range pending {
				outcome.Failures = append(outcome.Failures, &contract.ProviderError{
					Provider: name,
					Kind:     contract.FailureTimeout,
					Err:      ctx.Err(),
				})
				log.Warn().Str("provider", name).Msg("provider abandoned at deadline")
			}
			pending = nil
		}
	}
	log.Debug().
		Str("keyword", keyword).
		Int("providers_ok", len(outcome.ResultsByProvider)).
		Int("providers_failed", len(outcome.Failures)).
		Msg("search fan-out settled")
	return outcome, nil
}

func (e *Engine) callProvider(ctx context.Context, name string, client contract.ProviderClient, keyword string) settled {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	records, err := client.Search(callCtx, keyword, e.limit)
	if err != nil {
		return settled{provider: name, err: classifyFailure(name, err)}
	}
	// Providers own their records after return; copy defensively.
	out := make([]statex.ProductRecord, 0, len(records))
	for _, rec := range records {
		rec.Provider = name
		out = append(out, rec.Clone())
	}
	return settled{provider: name, records: out}
}

func classifyFailure(name string, err error) *contract.ProviderError {
	var pe *contract.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	kind := contract.FailureUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = contract.FailureTimeout
	}
	return &contract.ProviderError{Provider: name, Kind: kind, Err: err}
}
