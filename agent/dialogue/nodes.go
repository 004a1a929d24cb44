package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/aggregate"
	"github.com/okaimono/shopping-agent/agent/contract"
	"github.com/okaimono/shopping-agent/agent/prefs"
	statex "github.com/okaimono/shopping-agent/agent/state"
)

// GraphInput is one user turn entering the pipeline.
type GraphInput struct {
	SessionID string
	Text      string
}

// graphState threads the pipeline. Nodes mutate it in sequence; the session
// inside is a private clone until saveSession persists it.
type graphState struct {
	in      GraphInput
	now     time.Time
	created bool

	session *statex.Session
	intent  prefs.Intent
	delta   statex.Delta

	searched  bool
	noResults bool
	outcome   contract.SearchOutcome
	result    aggregate.Result

	replyText   string
	products    []statex.ProductRecord
	reviewLinks []contract.ReviewLink
}

func (c *Controller) validateRequest(in GraphInput) (*graphState, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, contract.ErrEmptyInput
	}
	return &graphState{in: in, now: c.now()}, nil
}

// loadSession resolves the session handle. An empty id starts a fresh
// session; an unknown non-empty id is the caller's error.
func (c *Controller) loadSession(ctx context.Context, st *graphState) (*graphState, error) {
	id := strings.TrimSpace(st.in.SessionID)
	if id == "" {
		st.session = statex.NewSession(uuid.NewString(), st.now)
		st.created = true
		return st, nil
	}
	s, err := c.store.Load(ctx, id)
	if errors.Is(err, statex.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", contract.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	st.session = s
	return st, nil
}

func (c *Controller) extractPreferences(st *graphState) (*graphState, error) {
	text := strings.TrimSpace(st.in.Text)
	st.intent = c.extractor.Classify(text)
	st.delta = c.extractor.Extract(text)
	st.session.AppendTurn(statex.RoleUser, text, st.now)
	return st, nil
}

// advanceState is the transition function of the dialogue machine. It picks
// the next state, applies the preference delta where the state allows it,
// and settles the non-search reply text.
func (c *Controller) advanceState(st *graphState) (*graphState, error) {
	s := st.session
	turn := len(s.History)

	if st.intent == prefs.IntentFarewell {
		if err := s.Transition(statex.StateEnded); err != nil {
			return nil, err
		}
		st.replyText = pickTemplate(farewellTemplates, turn)
		return st, nil
	}

	if s.State == statex.StateImageConfirm {
		switch {
		case c.extractor.IsNegative(st.in.Text):
			s.Confirmed = nil
			s.Prefs.ConfirmedProductID = ""
			if err := s.Transition(statex.StateHearing); err != nil {
				return nil, err
			}
			st.replyText = confirmDenyMessage
			return st, nil
		case c.extractor.IsAffirmative(st.in.Text):
			if err := s.Transition(statex.StateReviewSummary); err != nil {
				return nil, err
			}
			name := s.Prefs.ConfirmedProductID
			if s.Confirmed != nil {
				name = s.Confirmed.Name
				st.reviewLinks = c.reviews.Links(*s.Confirmed)
			} else {
				st.reviewLinks = c.reviews.Links(statex.ProductRecord{Name: name})
			}
			st.replyText = fmt.Sprintf(reviewIntroTemplate, name)
			return st, nil
		default:
			// Anything else reads as new preference input.
			if err := s.Transition(statex.StateHearing); err != nil {
				return nil, err
			}
		}
	}

	// Past the confirmation flow, any further text reads as new preference
	// input and the conversation returns to hearing before it can search.
	if s.State == statex.StateReviewSummary || s.State == statex.StateFavoritesCompare {
		if err := s.Transition(statex.StateHearing); err != nil {
			return nil, err
		}
	}

	if s.State == statex.StateStart {
		if err := s.Transition(statex.StateHearing); err != nil {
			return nil, err
		}
	}

	s.Prefs.Apply(st.delta)

	if st.delta.ConfirmedProductID != "" {
		candidate := c.lookupCandidate(st.delta.ConfirmedProductID)
		s.Confirmed = &candidate
		if err := s.Transition(statex.StateImageConfirm); err != nil {
			return nil, err
		}
		st.replyText = fmt.Sprintf(confirmAskTemplate, candidate.Name)
		return st, nil
	}

	switch st.intent {
	case prefs.IntentGreeting:
		st.replyText = pickTemplate(greetingTemplates, turn)
	case prefs.IntentHelp:
		st.replyText = pickTemplate(helpTemplates, turn)
	}

	if s.Prefs.SearchEligible() {
		if err := s.Transition(statex.StateSearching); err != nil {
			return nil, err
		}
		st.searched = true
		return st, nil
	}

	if st.replyText == "" {
		if st.delta.Empty() {
			// Unrecognized input with no known intent gets a clarifying
			// prompt, never an error.
			st.replyText = pickTemplate(clarifyTemplates, turn)
		} else {
			st.replyText = pickTemplate(hearingTemplates, turn)
		}
	}
	return st, nil
}

// runSearch fans out, aggregates and handles the empty-after-filter case.
// Provider failures never surface past this node.
func (c *Controller) runSearch(ctx context.Context, st *graphState) (*graphState, error) {
	if !st.searched {
		return st, nil
	}
	outcome, err := c.engine.Search(ctx, st.session.Prefs)
	if err != nil {
		return nil, fmt.Errorf("search fan-out: %w", err)
	}
	st.outcome = outcome

	result, err := c.aggregator.Aggregate(ctx, outcome, st.session.Prefs, c.providerOrder)
	if errors.Is(err, contract.ErrNoResultsAfterFilter) {
		st.noResults = true
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	st.result = result
	return st, nil
}

func (c *Controller) composeReply(st *graphState) (*graphState, error) {
	if st.searched {
		switch {
		case st.noResults:
			st.replyText = noResultsMessage
		case st.outcome.TotalFailure():
			st.replyText = totalFailureMessage
		case len(st.result.Products) == 0:
			st.replyText = noResultsMessage
		default:
			st.replyText = renderResults(st.result.Products, st.result.Summary, st.outcome.Partial())
			st.products = st.result.Products
		}
	}
	return st, nil
}

func (c *Controller) buildSuggestions(ctx context.Context, st *graphState) []string {
	return c.suggestions.Generate(ctx, st.session)
}

func (c *Controller) saveSession(ctx context.Context, st *graphState) (*graphState, error) {
	st.session.AppendTurn(statex.RoleAgent, st.replyText, st.now)
	st.session.Touch(st.now)
	if err := c.store.Save(ctx, st.session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if st.created {
		log.Info().Str("session_id", st.session.ID).Msg("session created")
	}
	return st, nil
}

func (c *Controller) finalizeReply(ctx context.Context, st *graphState) (contract.Reply, error) {
	return contract.Reply{
		SessionID:   st.session.ID,
		AgentText:   st.replyText,
		Suggestions: c.buildSuggestions(ctx, st),
		Products:    st.products,
		ReviewLinks: st.reviewLinks,
		State:       st.session.State,
	}, nil
}

// lookupCandidate resolves a product code to a catalog record when one of
// the providers knows it, falling back to a bare record with the code as
// name.
func (c *Controller) lookupCandidate(code string) statex.ProductRecord {
	if c.resolver != nil {
		if rec, ok := c.resolver(code); ok {
			return rec
		}
	}
	return statex.ProductRecord{ItemID: code, Name: code}
}
