package state

import (
	"errors"
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, sec, 0, time.UTC)
}

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to DialogueState }{
		{StateStart, StateHearing},
		{StateHearing, StateSearching},
		{StateHearing, StateImageConfirm},
		{StateSearching, StateSearching},
		{StateSearching, StateHearing},
		{StateImageConfirm, StateReviewSummary},
		{StateImageConfirm, StateHearing},
		{StateReviewSummary, StateFavoritesCompare},
		{StateFavoritesCompare, StateHearing},
		{StateReviewSummary, StateEnded},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to DialogueState }{
		{StateStart, StateSearching},
		{StateHearing, StateReviewSummary},
		{StateEnded, StateHearing},
		{StateEnded, StateEnded},
		{StateFavoritesCompare, StateReviewSummary},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestTransitionErrors(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	if err := s.Transition(StateSearching); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if err := s.Transition("bogus"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("err = %v, want ErrUnknownState", err)
	}
	if err := s.Transition(StateHearing); err != nil {
		t.Fatalf("valid transition failed: %v", err)
	}
	if s.State != StateHearing {
		t.Fatalf("state = %s, want hearing", s.State)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	st, err := ParseState(" hearing ")
	if err != nil || st != StateHearing {
		t.Fatalf("ParseState = %v, %v", st, err)
	}
	if _, err := ParseState("nope"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("err = %v, want ErrUnknownState", err)
	}
}

func TestAppendTurnClampsBackwardClock(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	s.AppendTurn(RoleUser, "first", ts(10))
	s.AppendTurn(RoleAgent, "second", ts(5))

	if s.History[1].Timestamp.Before(s.History[0].Timestamp) {
		t.Fatal("history timestamps went backwards")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRecentHistory(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	for i := 0; i < 5; i++ {
		s.AppendTurn(RoleUser, "turn", ts(i))
	}
	if got := len(s.RecentHistory(2)); got != 2 {
		t.Fatalf("RecentHistory(2) length = %d", got)
	}
	if got := len(s.RecentHistory(0)); got != 5 {
		t.Fatalf("RecentHistory(0) length = %d", got)
	}
	if got := len(s.RecentHistory(99)); got != 5 {
		t.Fatalf("RecentHistory(99) length = %d", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	s.AppendTurn(RoleUser, "hello", ts(1))
	s.Prefs.Category = "parasol"
	s.State = StateHearing
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "rakuten"})

	s.Reset(ts(2))
	s.Reset(ts(3))

	if s.State != StateStart || len(s.History) != 0 || len(s.Favorites) != 0 || s.Prefs.Category != "" {
		t.Fatalf("session not reset: %+v", s)
	}
	if s.ID != "s1" {
		t.Fatalf("id changed: %s", s.ID)
	}
}

func TestToggleFavoriteDoubleToggle(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	rec := ProductRecord{ItemID: "p1", Shop: "rakuten", Name: "日傘"}

	if !s.ToggleFavorite(rec) {
		t.Fatal("first toggle should add")
	}
	if !s.IsFavorite("p1", "rakuten") {
		t.Fatal("IsFavorite after add = false")
	}
	if s.ToggleFavorite(rec) {
		t.Fatal("second toggle should remove")
	}
	if s.IsFavorite("p1", "rakuten") {
		t.Fatal("IsFavorite after remove = true")
	}
}

func TestFavoritesKeyedByProductAndShop(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "rakuten"})
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "amazon"})

	if len(s.Favorites) != 2 {
		t.Fatalf("got %d favorites, want 2 distinct shop entries", len(s.Favorites))
	}
}

func TestCompareFavoritesOrdersByPrice(t *testing.T) {
	t.Parallel()

	p1, p2 := int64(3500), int64(2980)
	s := NewSession("s1", ts(0))
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "amazon", Price: &p1})
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "rakuten", Price: &p2})
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "yahoo"})
	s.ToggleFavorite(ProductRecord{ItemID: "other", Shop: "rakuten", Price: &p2})

	recs := s.CompareFavorites("p1")
	if len(recs) != 3 {
		t.Fatalf("got %d entries, want 3", len(recs))
	}
	if recs[0].Shop != "rakuten" || recs[1].Shop != "amazon" || recs[2].Shop != "yahoo" {
		t.Fatalf("order = %s, %s, %s", recs[0].Shop, recs[1].Shop, recs[2].Shop)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSession("s1", ts(0))
	s.AppendTurn(RoleUser, "hello", ts(1))
	s.Prefs.Features = []string{"軽量"}
	s.ToggleFavorite(ProductRecord{ItemID: "p1", Shop: "rakuten"})

	cp := s.Clone()
	cp.History[0].Text = "changed"
	cp.Prefs.Features[0] = "changed"
	cp.ToggleFavorite(ProductRecord{ItemID: "p2", Shop: "rakuten"})

	if s.History[0].Text != "hello" {
		t.Error("history shared between clone and original")
	}
	if s.Prefs.Features[0] != "軽量" {
		t.Error("features shared between clone and original")
	}
	if len(s.Favorites) != 1 {
		t.Error("favorites shared between clone and original")
	}
}
