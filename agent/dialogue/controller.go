// Package dialogue hosts the conversation controller: one compiled pipeline
// that takes a user turn through validation, preference extraction, the
// state machine, search and persistence.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okaimono/shopping-agent/agent/aggregate"
	"github.com/okaimono/shopping-agent/agent/contract"
	"github.com/okaimono/shopping-agent/agent/prefs"
	"github.com/okaimono/shopping-agent/agent/search"
	statex "github.com/okaimono/shopping-agent/agent/state"
	"github.com/okaimono/shopping-agent/agent/suggest"
)

// CandidateResolver maps a product code from user input to a known product
// record, when any provider recognizes it.
type CandidateResolver func(code string) (statex.ProductRecord, bool)

type Controller struct {
	store       statex.Store
	extractor   *prefs.Extractor
	engine      *search.Engine
	aggregator  *aggregate.Aggregator
	suggestions *suggest.Generator
	reviews     contract.ReviewLinker

	providerOrder []string
	resolver      CandidateResolver

	graphRunner compose.Runnable[GraphInput, contract.Reply]

	// locks serializes handleInput per session id; different sessions run
	// fully independently.
	locks sync.Map

	now func() time.Time
}

type ControllerOption func(*Controller)

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCandidateResolver(r CandidateResolver) ControllerOption {
	return func(c *Controller) { c.resolver = r }
}

func NewController(
	store statex.Store,
	engine *search.Engine,
	registry *search.Registry,
	aggregator *aggregate.Aggregator,
	suggestions *suggest.Generator,
	reviews contract.ReviewLinker,
	opts ...ControllerOption,
) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if engine == nil || registry == nil {
		return nil, errors.New("search engine and registry are required")
	}
	if aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if suggestions == nil {
		return nil, errors.New("suggestion generator is required")
	}
	if reviews == nil {
		return nil, errors.New("review linker is required")
	}

	c := &Controller{
		store:         store,
		extractor:     prefs.NewExtractor(),
		engine:        engine,
		aggregator:    aggregator,
		suggestions:   suggestions,
		reviews:       reviews,
		providerOrder: registry.Order(),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	runner, err := c.compileHandleInputGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = runner
	return c, nil
}

func (c *Controller) lock(sessionID string) func() {
	v, _ := c.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// HandleInput runs one user turn. Validation errors and unknown sessions
// come back as errors with no state change; failures later in the pipeline
// degrade to an apology reply so the user always gets text back.
func (c *Controller) HandleInput(ctx context.Context, sessionID, text string) (contract.Reply, error) {
	unlock := c.lock(strings.TrimSpace(sessionID))
	defer unlock()

	reply, err := c.graphRunner.Invoke(ctx, GraphInput{SessionID: sessionID, Text: text})
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, contract.ErrEmptyInput) ||
		errors.Is(err, contract.ErrSessionNotFound) ||
		errors.Is(err, contract.ErrValidation) {
		return contract.Reply{}, err
	}

	log.Error().Err(err).Str("session_id", sessionID).Msg("dialogue pipeline failed")
	return c.apologyReply(ctx, sessionID, text), nil
}

// apologyReply records the failed turn against a freshly loaded session and
// answers with a generic apology. Persistence here is best effort.
func (c *Controller) apologyReply(ctx context.Context, sessionID, text string) contract.Reply {
	now := c.now()
	s, err := c.store.Load(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		s = statex.NewSession(uuid.NewString(), now)
	}
	s.AppendTurn(statex.RoleUser, strings.TrimSpace(text), now)
	s.AppendTurn(statex.RoleAgent, errorApology, now)
	s.Touch(now)
	if saveErr := c.store.Save(ctx, s); saveErr != nil {
		log.Warn().Err(saveErr).Str("session_id", s.ID).Msg("failed to persist apology turn")
	}
	return contract.Reply{
		SessionID: s.ID,
		AgentText: errorApology,
		State:     s.State,
	}
}

// CreateSession allocates an empty session and persists it.
func (c *Controller) CreateSession(ctx context.Context) (*statex.Session, error) {
	s := statex.NewSession(uuid.NewString(), c.now())
	if err := c.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (c *Controller) GetSession(ctx context.Context, sessionID string) (*statex.Session, error) {
	s, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", contract.ErrSessionNotFound, sessionID)
	}
	return s, err
}

func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := c.lock(sessionID)
	defer unlock()
	return c.store.Delete(ctx, sessionID)
}

// Reset clears a session back to its initial state, keeping the identifier.
func (c *Controller) Reset(ctx context.Context, sessionID string) (*statex.Session, error) {
	unlock := c.lock(sessionID)
	defer unlock()

	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Reset(c.now())
	if err := c.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	return s, nil
}

// ToggleFavorite flips the (product, shop) favorite key and reports whether
// the record is now favorited.
func (c *Controller) ToggleFavorite(ctx context.Context, sessionID string, rec statex.ProductRecord) (bool, error) {
	if strings.TrimSpace(rec.ItemID) == "" {
		return false, fmt.Errorf("%w: product id is required", contract.ErrValidation)
	}
	unlock := c.lock(sessionID)
	defer unlock()

	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	added := s.ToggleFavorite(rec)
	s.Touch(c.now())
	if err := c.store.Save(ctx, s); err != nil {
		return false, fmt.Errorf("save favorites: %w", err)
	}
	return added, nil
}

func (c *Controller) Favorites(ctx context.Context, sessionID string) ([]statex.ProductRecord, error) {
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]statex.ProductRecord, 0, len(s.Favorites))
	for _, rec := range s.Favorites {
		out = append(out, rec)
	}
	statex.SortByPriceAscending(out)
	return out, nil
}

// CompareFavorites lists the favorited offers for one product across shops,
// cheapest first. In the review-summary state this moves the dialogue to the
// comparison state.
func (c *Controller) CompareFavorites(ctx context.Context, sessionID, productID string) ([]statex.ProductRecord, error) {
	unlock := c.lock(sessionID)
	defer unlock()

	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	recs := s.CompareFavorites(productID)
	if statex.CanTransition(s.State, statex.StateFavoritesCompare) && s.State != statex.StateFavoritesCompare {
		if err := s.Transition(statex.StateFavoritesCompare); err == nil {
			s.Touch(c.now())
			if saveErr := c.store.Save(ctx, s); saveErr != nil {
				log.Warn().Err(saveErr).Str("session_id", s.ID).Msg("failed to persist compare transition")
			}
		}
	}
	return recs, nil
}

// SearchProducts runs a one-shot keyword search outside any session: the
// query goes through the same extraction, fan-out and aggregation as a chat
// turn, without touching dialogue state.
func (c *Controller) SearchProducts(ctx context.Context, query string) (aggregate.Result, error) {
	var p statex.Preferences
	p.Apply(c.extractor.Extract(query))
	if !p.SearchEligible() {
		return aggregate.Result{}, fmt.Errorf("%w: query carries no searchable terms", contract.ErrValidation)
	}
	outcome, err := c.engine.Search(ctx, p)
	if err != nil {
		return aggregate.Result{}, err
	}
	return c.aggregator.Aggregate(ctx, outcome, p, c.providerOrder)
}
