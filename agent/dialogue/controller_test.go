package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okaimono/shopping-agent/agent/aggregate"
	"github.com/okaimono/shopping-agent/agent/contract"
	"github.com/okaimono/shopping-agent/agent/review"
	"github.com/okaimono/shopping-agent/agent/search"
	statex "github.com/okaimono/shopping-agent/agent/state"
	"github.com/okaimono/shopping-agent/agent/suggest"
)

type fakeProvider struct {
	name    string
	records []statex.ProductRecord
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, keyword string, limit int) ([]statex.ProductRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func price(v int64) *int64 { return &v }

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func parasol(id, shop string, p int64) statex.ProductRecord {
	return statex.ProductRecord{
		ItemID:   id,
		Name:     "完全遮光日傘 " + id,
		Price:    price(p),
		Shop:     shop,
		Features: []string{"軽量", "UVカット"},
	}
}

func newTestController(t *testing.T, providers ...contract.ProviderClient) (*Controller, *statex.MemoryStore) {
	t.Helper()

	store := statex.NewMemoryStore()
	registry := search.NewRegistry()
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.Name(), err)
		}
	}
	engine := search.NewEngine(registry, search.WithProviderTimeout(100*time.Millisecond))

	c, err := NewController(
		store,
		engine,
		registry,
		aggregate.New(),
		suggest.New(),
		review.NewLinker(),
	)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, store
}

func TestHandleInputEmptyText(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	_, err := c.HandleInput(context.Background(), "", "   ")
	if !errors.Is(err, contract.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestHandleInputUnknownSession(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	_, err := c.HandleInput(context.Background(), "no-such-session", "こんにちは")
	if !errors.Is(err, contract.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleInputCreatesSessionAndGreets(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &fakeProvider{name: "rakuten"})
	reply, err := c.HandleInput(context.Background(), "", "こんにちは")
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("reply has no session id")
	}
	if reply.State != statex.StateHearing {
		t.Fatalf("state = %s, want hearing", reply.State)
	}
	if !containsString(greetingTemplates, reply.AgentText) {
		t.Fatalf("greeting text = %q", reply.AgentText)
	}
	if len(reply.Suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(reply.Suggestions))
	}

	s, err := store.Load(context.Background(), reply.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.History) != 2 {
		t.Fatalf("history length = %d, want user+agent turns", len(s.History))
	}
}

func TestHandleInputSearchFlowWithPartialFailure(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t,
		&fakeProvider{name: "rakuten", records: []statex.ProductRecord{parasol("p1", "楽天市場", 2980)}},
		&fakeProvider{name: "yahoo", err: errors.New("down")},
	)

	reply, err := c.HandleInput(context.Background(), "", "軽量な日傘を探したい 軽量")
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if reply.State != statex.StateSearching {
		t.Fatalf("state = %s, want searching", reply.State)
	}
	if len(reply.Products) != 1 {
		t.Fatalf("got %d products, want 1: %q", len(reply.Products), reply.AgentText)
	}
	if !strings.Contains(reply.AgentText, "一部の情報を取得できませんでした") {
		t.Fatalf("missing partial failure notice: %q", reply.AgentText)
	}
}

func TestHandleInputTotalProviderFailureDegrades(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t,
		&fakeProvider{name: "rakuten", err: errors.New("down")},
		&fakeProvider{name: "yahoo", err: errors.New("down")},
	)

	reply, err := c.HandleInput(context.Background(), "", "日傘 軽量")
	if err != nil {
		t.Fatalf("total provider failure must not be a request error: %v", err)
	}
	if !strings.Contains(reply.AgentText, "取得できませんでした") {
		t.Fatalf("text = %q, want degraded message", reply.AgentText)
	}
	if len(reply.Products) != 0 {
		t.Fatalf("got %d products, want 0", len(reply.Products))
	}
}

func TestHandleInputNoResultsAfterFilter(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t,
		&fakeProvider{name: "rakuten", records: []statex.ProductRecord{parasol("p1", "楽天市場", 9000)}},
	)

	reply, err := c.HandleInput(context.Background(), "", "日傘 軽量 1000円以下")
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if !strings.Contains(reply.AgentText, "条件を緩めて") {
		t.Fatalf("text = %q, want relax-constraints prompt", reply.AgentText)
	}
}

func TestHandleInputFarewellEndsSession(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	reply, err := c.HandleInput(context.Background(), "", "ありがとう、さようなら")
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if reply.State != statex.StateEnded {
		t.Fatalf("state = %s, want ended", reply.State)
	}
	if len(reply.Suggestions) != 0 {
		t.Fatalf("ended state must not emit suggestions: %v", reply.Suggestions)
	}
}

func TestHandleInputImageConfirmationFlow(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "UV-1204")
	if err != nil {
		t.Fatalf("HandleInput(code): %v", err)
	}
	if reply.State != statex.StateImageConfirm {
		t.Fatalf("state = %s, want image_confirmation", reply.State)
	}
	sessionID := reply.SessionID

	reply, err = c.HandleInput(ctx, sessionID, "はい")
	if err != nil {
		t.Fatalf("HandleInput(affirm): %v", err)
	}
	if reply.State != statex.StateReviewSummary {
		t.Fatalf("state = %s, want review_summary", reply.State)
	}
	if len(reply.ReviewLinks) == 0 {
		t.Fatal("expected review links after confirmation")
	}
}

func TestHandleInputImageConfirmationDeny(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "UV-1204")
	if err != nil {
		t.Fatalf("HandleInput(code): %v", err)
	}
	reply, err = c.HandleInput(ctx, reply.SessionID, "いいえ")
	if err != nil {
		t.Fatalf("HandleInput(deny): %v", err)
	}
	if reply.State != statex.StateHearing {
		t.Fatalf("state = %s, want hearing after deny", reply.State)
	}
}

func TestHandleInputNewRequirementsAfterReviewSummary(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t,
		&fakeProvider{name: "rakuten", records: []statex.ProductRecord{parasol("p1", "楽天市場", 2980)}},
	)
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "UV-1204")
	if err != nil {
		t.Fatalf("HandleInput(code): %v", err)
	}
	sessionID := reply.SessionID

	reply, err = c.HandleInput(ctx, sessionID, "はい")
	if err != nil {
		t.Fatalf("HandleInput(affirm): %v", err)
	}
	if reply.State != statex.StateReviewSummary {
		t.Fatalf("state = %s, want review_summary", reply.State)
	}

	// New requirements after the review step must restart the search loop,
	// not fail the turn.
	reply, err = c.HandleInput(ctx, sessionID, "日傘 軽量")
	if err != nil {
		t.Fatalf("HandleInput(new keywords): %v", err)
	}
	if reply.AgentText == errorApology {
		t.Fatal("new keywords after review_summary produced the apology reply")
	}
	if reply.State != statex.StateSearching {
		t.Fatalf("state = %s, want searching", reply.State)
	}
	if len(reply.Products) != 1 {
		t.Fatalf("got %d products, want 1: %q", len(reply.Products), reply.AgentText)
	}
}

func TestHandleInputNewRequirementsAfterFavoritesCompare(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t,
		&fakeProvider{name: "rakuten", records: []statex.ProductRecord{parasol("p1", "楽天市場", 2980)}},
	)
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "UV-1204")
	if err != nil {
		t.Fatalf("HandleInput(code): %v", err)
	}
	sessionID := reply.SessionID
	if _, err = c.HandleInput(ctx, sessionID, "はい"); err != nil {
		t.Fatalf("HandleInput(affirm): %v", err)
	}
	if _, err = c.CompareFavorites(ctx, sessionID, "p1"); err != nil {
		t.Fatalf("CompareFavorites: %v", err)
	}
	s, err := c.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.State != statex.StateFavoritesCompare {
		t.Fatalf("state = %s, want favorites_compare before the next turn", s.State)
	}

	reply, err = c.HandleInput(ctx, sessionID, "軽量")
	if err != nil {
		t.Fatalf("HandleInput(new keyword): %v", err)
	}
	if reply.AgentText == errorApology {
		t.Fatal("new keyword after favorites_compare produced the apology reply")
	}
	if reply.State != statex.StateSearching {
		t.Fatalf("state = %s, want searching", reply.State)
	}
}

func TestHandleInputClarifiesAmbiguousInput(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	reply, err := c.HandleInput(context.Background(), "", "の")
	if err != nil {
		t.Fatalf("ambiguous input must not error: %v", err)
	}
	if reply.AgentText == "" {
		t.Fatal("expected a clarifying prompt")
	}
	if reply.State != statex.StateHearing {
		t.Fatalf("state = %s, want hearing", reply.State)
	}
}

func TestResetClearsSessionKeepingID(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "日傘 軽量")
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	s, err := c.Reset(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.ID != reply.SessionID {
		t.Fatalf("id changed on reset: %s != %s", s.ID, reply.SessionID)
	}
	if s.State != statex.StateStart || len(s.History) != 0 {
		t.Fatalf("session not cleared: state=%s history=%d", s.State, len(s.History))
	}
}

func TestFavoritesToggleAndCompare(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, &fakeProvider{name: "rakuten"})
	ctx := context.Background()

	s, err := c.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rakuten := parasol("p1", "楽天市場", 2980)
	amazon := parasol("p1", "Amazon", 3500)

	added, err := c.ToggleFavorite(ctx, s.ID, rakuten)
	if err != nil || !added {
		t.Fatalf("first toggle: added=%v err=%v", added, err)
	}
	added, err = c.ToggleFavorite(ctx, s.ID, amazon)
	if err != nil || !added {
		t.Fatalf("second toggle: added=%v err=%v", added, err)
	}

	recs, err := c.CompareFavorites(ctx, s.ID, "p1")
	if err != nil {
		t.Fatalf("CompareFavorites: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d entries, want 2", len(recs))
	}
	if *recs[0].Price != 2980 || *recs[1].Price != 3500 {
		t.Fatalf("not sorted by price: %v %v", *recs[0].Price, *recs[1].Price)
	}

	// Double toggle removes.
	added, err = c.ToggleFavorite(ctx, s.ID, rakuten)
	if err != nil || added {
		t.Fatalf("double toggle: added=%v err=%v", added, err)
	}
	favs, err := c.Favorites(ctx, s.ID)
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(favs) != 1 {
		t.Fatalf("got %d favorites, want 1", len(favs))
	}
}

func TestPreferencesAccumulateAcrossTurns(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t,
		&fakeProvider{name: "rakuten", records: []statex.ProductRecord{parasol("p1", "楽天市場", 2980)}},
	)
	ctx := context.Background()

	reply, err := c.HandleInput(ctx, "", "日傘 軽量")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	_, err = c.HandleInput(ctx, reply.SessionID, "5000円以下")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	s, err := store.Load(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Prefs.Category != "parasol" {
		t.Errorf("category = %q, want parasol", s.Prefs.Category)
	}
	if s.Prefs.PriceMax == nil || *s.Prefs.PriceMax != 5000 {
		t.Errorf("price max = %v, want 5000", s.Prefs.PriceMax)
	}
	if len(s.Prefs.Features) != 1 || s.Prefs.Features[0] != "軽量" {
		t.Errorf("features = %v, want [軽量]", s.Prefs.Features)
	}
}
